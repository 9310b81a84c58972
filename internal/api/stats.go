package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jerry-run/apirouter/internal/usage"
)

type statsSummary struct {
	TotalRequests  int64 `json:"totalRequests"`
	TotalSuccess   int64 `json:"totalSuccess"`
	TotalErrors    int64 `json:"totalErrors"`
	TotalKeys      int   `json:"totalKeys"`
	TotalProviders int   `json:"totalProviders"`
}

type providerStats struct {
	Provider      string `json:"provider"`
	TotalRequests int64  `json:"totalRequests"`
	TotalSuccess  int64  `json:"totalSuccess"`
	TotalErrors   int64  `json:"totalErrors"`
	AvgLatency    int64  `json:"avgLatency"`
}

type keyStats struct {
	KeyID         string `json:"keyId"`
	KeyName       string `json:"keyName"`
	TotalRequests int64  `json:"totalRequests"`
	TotalSuccess  int64  `json:"totalSuccess"`
	TotalErrors   int64  `json:"totalErrors"`
	AvgLatency    int64  `json:"avgLatency"`
}

// GetStats returns usage aggregated by provider and by key, plus an
// overall summary.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	byProvider, err := h.Usage.AggregateByProvider()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch statistics")
		return
	}
	byKey, err := h.Usage.AggregateByKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch statistics")
		return
	}

	summary := statsSummary{
		TotalKeys:      len(byKey),
		TotalProviders: len(byProvider),
	}
	provOut := make([]providerStats, 0, len(byProvider))
	for _, agg := range byProvider {
		summary.TotalRequests += agg.RequestCount
		summary.TotalSuccess += agg.SuccessCount
		summary.TotalErrors += agg.ErrorCount
		provOut = append(provOut, providerStats{
			Provider:      agg.Group,
			TotalRequests: agg.RequestCount,
			TotalSuccess:  agg.SuccessCount,
			TotalErrors:   agg.ErrorCount,
			AvgLatency:    agg.AvgLatencyMs,
		})
	}

	keyOut := make([]keyStats, 0, len(byKey))
	for _, agg := range byKey {
		keyOut = append(keyOut, keyStats{
			KeyID:         agg.Group,
			KeyName:       h.keyName(agg.Group),
			TotalRequests: agg.RequestCount,
			TotalSuccess:  agg.SuccessCount,
			TotalErrors:   agg.ErrorCount,
			AvgLatency:    agg.AvgLatencyMs,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"summary":    summary,
		"byProvider": provOut,
		"byKey":      keyOut,
	})
}

// GetKeyStats returns the per-provider usage breakdown of one key. Unknown
// keys yield an empty aggregate, not a 404.
func (h *Handlers) GetKeyStats(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyId")

	records, err := h.Usage.Query(keyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch key statistics")
		return
	}

	type providerBreakdown struct {
		Provider   string `json:"provider"`
		Requests   int64  `json:"requests"`
		Success    int64  `json:"success"`
		Errors     int64  `json:"errors"`
		AvgLatency int64  `json:"avgLatency"`
		LastUsedAt string `json:"lastUsedAt"`
	}

	var totalRequests, totalSuccess, totalErrors int64
	breakdown := make([]providerBreakdown, 0, len(records))
	for _, rec := range records {
		totalRequests += rec.RequestCount
		totalSuccess += rec.SuccessCount
		totalErrors += rec.ErrorCount
		breakdown = append(breakdown, providerBreakdown{
			Provider:   rec.Provider,
			Requests:   rec.RequestCount,
			Success:    rec.SuccessCount,
			Errors:     rec.ErrorCount,
			AvgLatency: usage.AvgLatency(rec.TotalLatencyMs, rec.RequestCount),
			LastUsedAt: rec.LastUsedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keyId":         keyID,
		"totalRequests": totalRequests,
		"totalSuccess":  totalSuccess,
		"totalErrors":   totalErrors,
		"providers":     breakdown,
	})
}

// keyName resolves a key id for display; deleted keys still resolve
// because deletion is soft.
func (h *Handlers) keyName(keyID string) string {
	k, err := h.Keys.Get(keyID)
	if err != nil {
		return keyID
	}
	return k.Name
}
