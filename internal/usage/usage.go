// Package usage accumulates per-(key, provider) request counters and
// produces aggregated views by provider and by key.
package usage

import (
	"math"
	"sort"
	"time"
)

// Record holds the running counters for one (key, provider) pair.
// SuccessCount+ErrorCount always equals RequestCount; counters never
// decrease, and records survive key or provider deletion for audit.
type Record struct {
	KeyID          string    `json:"keyId"`
	Provider       string    `json:"provider"`
	RequestCount   int64     `json:"requestCount"`
	SuccessCount   int64     `json:"successCount"`
	ErrorCount     int64     `json:"errorCount"`
	TotalLatencyMs int64     `json:"totalLatencyMs"`
	LastUsedAt     time.Time `json:"lastUsedAt"`
}

// Aggregate is a grouped view of records, keyed by provider name or key id.
type Aggregate struct {
	Group          string `json:"group"`
	RequestCount   int64  `json:"requestCount"`
	SuccessCount   int64  `json:"successCount"`
	ErrorCount     int64  `json:"errorCount"`
	TotalLatencyMs int64  `json:"totalLatencyMs"`
	AvgLatencyMs   int64  `json:"avgLatencyMs"`
}

// Ledger is the usage accounting contract. Record is atomic per pair under
// concurrent calls and never fails; storage errors are logged and dropped
// so accounting can not break a request that already succeeded.
type Ledger interface {
	Record(keyID, provider string, success bool, latencyMs int64)
	// Query returns all records, or those of one key when keyID is
	// non-empty, ordered by LastUsedAt descending. Unknown keys yield an
	// empty result, not an error.
	Query(keyID string) ([]Record, error)
	AggregateByProvider() ([]Aggregate, error)
	AggregateByKey() ([]Aggregate, error)
}

// AvgLatency derives the rounded average latency, 0 when no requests were
// recorded.
func AvgLatency(totalMs, requests int64) int64 {
	if requests == 0 {
		return 0
	}
	return int64(math.Round(float64(totalMs) / float64(requests)))
}

// aggregate groups records by groupOf, summing counters. Output is sorted
// by group for determinism.
func aggregate(records []Record, groupOf func(Record) string) []Aggregate {
	byGroup := make(map[string]*Aggregate)
	for _, r := range records {
		g := groupOf(r)
		agg, ok := byGroup[g]
		if !ok {
			agg = &Aggregate{Group: g}
			byGroup[g] = agg
		}
		agg.RequestCount += r.RequestCount
		agg.SuccessCount += r.SuccessCount
		agg.ErrorCount += r.ErrorCount
		agg.TotalLatencyMs += r.TotalLatencyMs
	}

	out := make([]Aggregate, 0, len(byGroup))
	for _, agg := range byGroup {
		agg.AvgLatencyMs = AvgLatency(agg.TotalLatencyMs, agg.RequestCount)
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}
