// Package api exposes the HTTP surface: key management, provider
// configuration, usage statistics and the search proxy.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jerry-run/apirouter/internal/auth"
	"github.com/jerry-run/apirouter/internal/keys"
	"github.com/jerry-run/apirouter/internal/providers"
	"github.com/jerry-run/apirouter/internal/search"
	"github.com/jerry-run/apirouter/internal/usage"
)

// Handlers bundles the stores behind the HTTP surface. All state is
// injected; the package holds no globals.
type Handlers struct {
	Keys      keys.Store
	Providers providers.Registry
	Usage     usage.Ledger
	Search    *search.Gateway
	Gate      *auth.Gate
}

func NewHandlers(ks keys.Store, pr providers.Registry, ul usage.Ledger, gw *search.Gateway) *Handlers {
	return &Handlers{
		Keys:      ks,
		Providers: pr,
		Usage:     ul,
		Search:    gw,
		Gate:      auth.NewGate(ks),
	}
}

// Register attaches all routes to the router.
func (h *Handlers) Register(r chi.Router) {
	r.Get("/api/health", h.Health)

	r.Route("/api/keys", func(r chi.Router) {
		r.Post("/", h.CreateKey)
		r.Get("/", h.ListKeys)
		r.Get("/{id}", h.GetKey)
		r.Delete("/{id}", h.DeleteKey)
	})

	r.Route("/api/config/providers", func(r chi.Router) {
		r.Get("/", h.ListProviders)
		r.Post("/{name}", h.UpsertProvider)
		r.Get("/{name}", h.GetProvider)
		r.Post("/{name}/check", h.CheckProvider)
		r.Delete("/{name}", h.DeleteProvider)
	})

	r.Get("/api/stats", h.GetStats)
	r.Get("/api/stats/keys/{keyId}", h.GetKeyStats)

	// Anonymous calls are allowed on the proxy; a supplied credential is
	// still fully verified and must be scoped to brave.
	r.Route("/api/proxy/brave", func(r chi.Router) {
		r.Use(h.Gate.Optional)
		r.Use(h.Gate.RequireProvider("brave"))
		r.Get("/search", h.SearchBrave)
		r.Post("/search", h.SearchBrave)
	})
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
