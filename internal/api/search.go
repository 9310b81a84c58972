package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jerry-run/apirouter/internal/auth"
	"github.com/jerry-run/apirouter/internal/search"
)

// SearchBrave proxies a search request to the brave provider. The auth
// middleware has already handled credential verification and provider
// scoping; this handler attributes the outcome to the calling key.
func (h *Handlers) SearchBrave(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, outcome, err := h.Search.Search(r.Context(), query)
	if err != nil {
		var qe *search.QueryError
		if errors.As(err, &qe) {
			writeError(w, http.StatusBadRequest, qe.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	if cred, ok := auth.FromContext(r.Context()); ok {
		h.Usage.Record(cred.KeyID, "brave", outcome.Success, outcome.LatencyMs)
	}

	writeJSON(w, http.StatusOK, struct {
		*search.Response
		Timestamp string `json:"timestamp"`
	}{resp, time.Now().UTC().Format(time.RFC3339)})
}

func parseSearchQuery(r *http.Request) (search.Query, error) {
	if r.Method == http.MethodPost {
		var body struct {
			Q          string `json:"q"`
			Count      int    `json:"count"`
			Offset     int    `json:"offset"`
			SafeSearch string `json:"safesearch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return search.Query{}, errors.New("Invalid request body")
		}
		return search.Query{
			Q:          strings.TrimSpace(body.Q),
			Count:      body.Count,
			Offset:     body.Offset,
			SafeSearch: body.SafeSearch,
		}, nil
	}

	q := search.Query{
		Q:          strings.TrimSpace(r.URL.Query().Get("q")),
		SafeSearch: r.URL.Query().Get("safesearch"),
	}

	var err error
	if raw := r.URL.Query().Get("count"); raw != "" {
		if q.Count, err = strconv.Atoi(raw); err != nil {
			return search.Query{}, errors.New("count must be a number")
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if q.Offset, err = strconv.Atoi(raw); err != nil {
			return search.Query{}, errors.New("offset must be a number")
		}
	}
	return q, nil
}
