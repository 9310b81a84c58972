package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jerry-run/apirouter/internal/providers"
)

// ListProviders returns every stored provider config.
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Providers.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers")
		return
	}
	if list == nil {
		list = []*providers.Config{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UpsertProvider creates or merges a provider config. Fields omitted from
// the request body are preserved, not cleared.
func (h *Handlers) UpsertProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		APIKey    *string `json:"apiKey"`
		BaseURL   *string `json:"baseUrl"`
		RateLimit *int    `json:"rateLimit"`
		Timeout   *int    `json:"timeout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.Providers.Upsert(name, providers.Settings{
		Credential: body.APIKey,
		BaseURL:    body.BaseURL,
		RateLimit:  body.RateLimit,
		TimeoutMs:  body.Timeout,
	})
	if errors.Is(err, providers.ErrInvalidProvider) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update provider")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetProvider returns a single provider config.
func (h *Handlers) GetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cfg, err := h.Providers.Get(name)
	if errors.Is(err, providers.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Provider not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch provider")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// CheckProvider runs the health check and reports the result with its
// timestamp.
func (h *Handlers) CheckProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	healthy, err := h.Providers.CheckHealth(name)
	if errors.Is(err, providers.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Provider not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check provider")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":      providers.Normalize(name),
		"healthy":   healthy,
		"checkedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// DeleteProvider removes a provider config and its settings.
func (h *Handlers) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	deleted, err := h.Providers.Delete(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete provider")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Provider not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
