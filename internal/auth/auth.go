// Package auth gates HTTP requests on API key credentials and provider
// scope.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jerry-run/apirouter/internal/keys"
)

// Extraction failures. All map to a 401 outcome, with distinct messages
// for observability.
var (
	ErrMissingHeader = errors.New("missing authorization header")
	ErrBadScheme     = errors.New("invalid authorization scheme")
	ErrEmptyToken    = errors.New("missing API key")
	ErrBadFormat     = errors.New("invalid API key format")
)

// ExtractSecret pulls the bearer secret from the Authorization header.
// The prefix check rejects garbage input before any store lookup.
func ExtractSecret(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingHeader
	}

	scheme, token, _ := strings.Cut(header, " ")
	if scheme != "Bearer" {
		return "", ErrBadScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	if !strings.HasPrefix(token, keys.SecretPrefix) {
		return "", ErrBadFormat
	}
	return token, nil
}

// Gate authenticates requests against a key store and authorizes provider
// scope. It carries no state beyond the store handle.
type Gate struct {
	keys keys.Store
}

func NewGate(store keys.Store) *Gate {
	return &Gate{keys: store}
}

// RequireKey rejects requests without a valid credential: 401 for a
// missing or malformed header, 403 when the secret does not resolve to an
// active, unexpired key. On success the credential is injected into the
// request context.
func (g *Gate) RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret, err := ExtractSecret(r)
		if err != nil {
			denyUnauthenticated(w, err)
			return
		}

		r2, ok := g.authenticate(w, r, secret)
		if !ok {
			return
		}
		next.ServeHTTP(w, r2)
	})
}

// Optional admits anonymous requests untouched but applies the full
// RequireKey path as soon as any Authorization header is present.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret, err := ExtractSecret(r)
		if errors.Is(err, ErrMissingHeader) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			denyUnauthenticated(w, err)
			return
		}

		r2, ok := g.authenticate(w, r, secret)
		if !ok {
			return
		}
		next.ServeHTTP(w, r2)
	})
}

// RequireProvider denies authenticated requests whose key does not grant
// the given provider. Anonymous requests (possible behind Optional only)
// pass through with reduced trust. On an authorized call the key's
// last-used timestamp is recorded.
func (g *Gate) RequireProvider(provider string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, ok := FromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !cred.Grants(provider) {
				writeDenied(w, http.StatusForbidden, "forbidden",
					"This key does not have access to "+provider+" provider")
				return
			}

			g.keys.RecordUsage(cred.Secret)
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate resolves the secret and attaches the credential to the
// request context. It writes the denial itself and reports ok=false when
// the key does not verify.
func (g *Gate) authenticate(w http.ResponseWriter, r *http.Request, secret string) (*http.Request, bool) {
	k, err := g.keys.GetBySecret(secret)
	if err != nil {
		writeDenied(w, http.StatusForbidden, "forbidden", "Invalid or inactive API key")
		return nil, false
	}
	if k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt) {
		writeDenied(w, http.StatusForbidden, "forbidden", "API key has expired")
		return nil, false
	}

	cred := &Credential{KeyID: k.ID, Secret: secret, Providers: k.Providers}
	return r.WithContext(withCredential(r.Context(), cred)), true
}

func denyUnauthenticated(w http.ResponseWriter, err error) {
	msg := "Unauthorized"
	switch {
	case errors.Is(err, ErrMissingHeader):
		msg = "Missing authorization header"
	case errors.Is(err, ErrBadScheme):
		msg = "Invalid authorization scheme"
	case errors.Is(err, ErrEmptyToken):
		msg = "Missing API key"
	case errors.Is(err, ErrBadFormat):
		msg = "Invalid API key format"
	}
	writeDenied(w, http.StatusUnauthorized, "unauthorized", msg)
}

func writeDenied(w http.ResponseWriter, code int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error":"` + kind + `","message":"` + msg + `"}`))
}
