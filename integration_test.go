package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jerry-run/apirouter/internal/api"
	"github.com/jerry-run/apirouter/internal/database"
	"github.com/jerry-run/apirouter/internal/keys"
	"github.com/jerry-run/apirouter/internal/providers"
	"github.com/jerry-run/apirouter/internal/search"
	"github.com/jerry-run/apirouter/internal/usage"
)

// startServer wires the sqlite-backed stack the same way main does and
// serves it over an httptest listener.
func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "apirouter.db"))
	if err != nil {
		t.Fatalf("database init: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	registry := providers.NewDBRegistry(db)
	handlers := api.NewHandlers(
		keys.NewDBStore(db),
		registry,
		usage.NewDBLedger(db),
		search.NewGateway(registry, ""),
	)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	handlers.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func request(t *testing.T, method, url, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, out.Bytes()
}

func TestEndToEnd(t *testing.T) {
	srv := startServer(t)

	// Mint a key scoped to brave.
	resp, raw := request(t, http.MethodPost, srv.URL+"/api/keys", "", map[string]interface{}{
		"name":      "e2e-bot",
		"providers": []string{"brave"},
		"expiresIn": "never",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create key status = %d: %s", resp.StatusCode, raw)
	}
	var key struct {
		ID     string `json:"id"`
		Secret string `json:"key"`
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		t.Fatalf("decode key: %v", err)
	}

	// Configure the brave provider so the registry has an entry; no real
	// upstream is reachable, so searches still come from the mock path.
	resp, raw = request(t, http.MethodPost, srv.URL+"/api/config/providers/brave", "", map[string]interface{}{
		"rateLimit": 50,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert provider status = %d: %s", resp.StatusCode, raw)
	}

	// Authorized search.
	resp, raw = request(t, http.MethodGet, srv.URL+"/api/proxy/brave/search?q=integration", key.Secret, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d: %s", resp.StatusCode, raw)
	}
	var searchResp struct {
		Query       string `json:"query"`
		ResultCount int    `json:"resultCount"`
	}
	if err := json.Unmarshal(raw, &searchResp); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if searchResp.Query != "integration" || searchResp.ResultCount == 0 {
		t.Fatalf("search response = %+v", searchResp)
	}

	// A second call from an anonymous caller also succeeds but is not
	// attributed.
	resp, _ = request(t, http.MethodGet, srv.URL+"/api/proxy/brave/search?q=anon", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anonymous search status = %d", resp.StatusCode)
	}

	// Stats reflect exactly the attributed call.
	resp, raw = request(t, http.MethodGet, fmt.Sprintf("%s/api/stats/keys/%s", srv.URL, key.ID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("key stats status = %d: %s", resp.StatusCode, raw)
	}
	var stats struct {
		TotalRequests int64 `json:"totalRequests"`
		TotalSuccess  int64 `json:"totalSuccess"`
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalRequests != 1 || stats.TotalSuccess != 1 {
		t.Fatalf("stats = %+v, want one successful request", stats)
	}

	// Revoke the key; the same search is now rejected.
	resp, _ = request(t, http.MethodDelete, srv.URL+"/api/keys/"+key.ID, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete key status = %d", resp.StatusCode)
	}
	resp, raw = request(t, http.MethodGet, srv.URL+"/api/proxy/brave/search?q=integration", key.Secret, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("search with revoked key status = %d: %s", resp.StatusCode, raw)
	}
}
