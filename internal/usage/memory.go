package usage

import (
	"sort"
	"sync"
	"time"
)

type pair struct {
	keyID    string
	provider string
}

// MemoryLedger keeps counters in a mutex-guarded map, so two concurrent
// Record calls for the same pair can not lose an increment.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[pair]*Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[pair]*Record)}
}

func (l *MemoryLedger) Record(keyID, provider string, success bool, latencyMs int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := pair{keyID: keyID, provider: provider}
	r, ok := l.records[p]
	if !ok {
		r = &Record{KeyID: keyID, Provider: provider}
		l.records[p] = r
	}

	r.RequestCount++
	if success {
		r.SuccessCount++
	} else {
		r.ErrorCount++
	}
	r.TotalLatencyMs += latencyMs
	r.LastUsedAt = time.Now()
}

func (l *MemoryLedger) Query(keyID string) ([]Record, error) {
	return l.snapshot(keyID), nil
}

func (l *MemoryLedger) AggregateByProvider() ([]Aggregate, error) {
	return aggregate(l.snapshot(""), func(r Record) string { return r.Provider }), nil
}

func (l *MemoryLedger) AggregateByKey() ([]Aggregate, error) {
	return aggregate(l.snapshot(""), func(r Record) string { return r.KeyID }), nil
}

func (l *MemoryLedger) snapshot(keyID string) []Record {
	l.mu.RLock()
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		if keyID != "" && r.KeyID != keyID {
			continue
		}
		out = append(out, *r)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastUsedAt.After(out[j].LastUsedAt) })
	return out
}
