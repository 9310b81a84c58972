package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jerry-run/apirouter/internal/keys"
)

// CreateKey mints a new API key. The secret is only ever returned here.
func (h *Handlers) CreateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string   `json:"name"`
		Providers []string `json:"providers"`
		ExpiresIn string   `json:"expiresIn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	key, err := h.Keys.Create(body.Name, body.Providers, keys.ExpiryPolicy(body.ExpiresIn))
	if err != nil {
		var verr *keys.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create key")
		return
	}

	writeJSON(w, http.StatusCreated, key)
}

// ListKeys returns active keys in creation order.
func (h *Handlers) ListKeys(w http.ResponseWriter, r *http.Request) {
	list, err := h.Keys.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list keys")
		return
	}
	if list == nil {
		list = []*keys.Key{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetKey returns a key by id, including soft-deleted ones.
func (h *Handlers) GetKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	key, err := h.Keys.Get(id)
	if errors.Is(err, keys.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch key")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// DeleteKey soft-deletes a key; its secret stays reserved.
func (h *Handlers) DeleteKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.Keys.Delete(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete key")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
