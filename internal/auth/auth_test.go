package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jerry-run/apirouter/internal/keys"
)

func TestExtractSecret(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{
			name:    "missing header",
			header:  "",
			wantErr: ErrMissingHeader,
		},
		{
			name:    "wrong scheme",
			header:  "Basic abc",
			wantErr: ErrBadScheme,
		},
		{
			name:    "bearer without token",
			header:  "Bearer",
			wantErr: ErrBadScheme,
		},
		{
			name:    "bearer with blank token",
			header:  "Bearer   ",
			wantErr: ErrEmptyToken,
		},
		{
			name:    "wrong prefix",
			header:  "Bearer sk_abc123",
			wantErr: ErrBadFormat,
		},
		{
			name:   "well-formed",
			header: "Bearer ar_abc123",
			want:   "ar_abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got, err := ExtractSecret(req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("secret = %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestKey(t *testing.T, store keys.Store, providerNames ...string) *keys.Key {
	t.Helper()
	k, err := store.Create("test-key", providerNames, "")
	if err != nil {
		t.Fatalf("Create key failed: %v", err)
	}
	return k
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireKey(t *testing.T) {
	store := keys.NewMemoryStore()
	gate := NewGate(store)
	k := newTestKey(t, store, "brave")

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "missing header",
			header:      "",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Missing authorization header",
		},
		{
			name:        "wrong scheme",
			header:      "Basic abc",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid authorization scheme",
		},
		{
			name:        "blank token",
			header:      "Bearer  ",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Missing API key",
		},
		{
			name:        "bad prefix",
			header:      "Bearer sk_123",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid API key format",
		},
		{
			name:       "well-formed but unknown",
			header:     "Bearer ar_000000000000000000000000000",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key",
			header:     "Bearer " + k.Secret,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			gate.RequireKey(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantMessage != "" {
				var body map[string]string
				json.NewDecoder(w.Body).Decode(&body)
				if body["message"] != tt.wantMessage {
					t.Errorf("message = %q, want %q", body["message"], tt.wantMessage)
				}
			}
		})
	}
}

func TestRequireKeyDeactivated(t *testing.T) {
	store := keys.NewMemoryStore()
	gate := NewGate(store)
	k := newTestKey(t, store, "brave")
	store.Delete(k.ID)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+k.Secret)
	w := httptest.NewRecorder()
	gate.RequireKey(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a deactivated key", w.Code)
	}
}

func TestRequireKeyInjectsCredential(t *testing.T) {
	store := keys.NewMemoryStore()
	gate := NewGate(store)
	k := newTestKey(t, store, "brave", "openai")

	var got *Credential
	handler := gate.RequireKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+k.Secret)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("Credential should be in context")
	}
	if got.KeyID != k.ID {
		t.Errorf("KeyID = %s, want %s", got.KeyID, k.ID)
	}
	if !got.Grants("brave") || !got.Grants("OPENAI") || got.Grants("claude") {
		t.Errorf("Grants mismatch for providers %v", got.Providers)
	}
}

func TestOptional(t *testing.T) {
	store := keys.NewMemoryStore()
	gate := NewGate(store)
	k := newTestKey(t, store, "brave")

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCred   bool
	}{
		{
			name:       "anonymous passes",
			header:     "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed still rejected",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown secret rejected",
			header:     "Bearer ar_000000000000000000000000000",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid credential resolved",
			header:     "Bearer " + k.Secret,
			wantStatus: http.StatusOK,
			wantCred:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cred *Credential
			handler := gate.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				cred, _ = FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if (cred != nil) != tt.wantCred {
				t.Errorf("credential present = %v, want %v", cred != nil, tt.wantCred)
			}
		})
	}
}

func TestRequireProvider(t *testing.T) {
	store := keys.NewMemoryStore()
	gate := NewGate(store)
	k := newTestKey(t, store, "openai")

	chain := gate.Optional(gate.RequireProvider("brave")(okHandler()))

	// Anonymous requests pass the provider gate with reduced trust.
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("anonymous status = %d, want 200", w.Code)
	}

	// A key without the scope is denied, naming the provider.
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+k.Secret)
	w = httptest.NewRecorder()
	chain.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("unscoped status = %d, want 403", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if !strings.Contains(body["message"], "brave") {
		t.Errorf("denial message %q should name the missing provider", body["message"])
	}

	// A scoped key passes and gets its usage stamped.
	scoped := newTestKey(t, store, "brave")
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+scoped.Secret)
	w = httptest.NewRecorder()
	chain.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("scoped status = %d, want 200", w.Code)
	}
	got, _ := store.Get(scoped.ID)
	if got.LastUsedAt == nil {
		t.Error("Authorized call should record key usage")
	}
}
