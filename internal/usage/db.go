package usage

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/jerry-run/apirouter/internal/database"
)

// DBLedger persists counters in the relational backend. Increments run in
// a transaction with SQL-side arithmetic, so concurrent writers for the
// same pair serialize on the row instead of losing updates.
type DBLedger struct {
	db *gorm.DB
}

func NewDBLedger(db *gorm.DB) *DBLedger {
	return &DBLedger{db: db}
}

func (l *DBLedger) Record(keyID, provider string, success bool, latencyMs int64) {
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var stat database.UsageStat
		findErr := tx.Where("key_id = ? AND provider = ?", keyID, provider).First(&stat).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			stat = database.UsageStat{
				KeyID:          keyID,
				Provider:       provider,
				RequestCount:   1,
				TotalLatencyMs: latencyMs,
				LastUsedAt:     time.Now(),
			}
			if success {
				stat.SuccessCount = 1
			} else {
				stat.ErrorCount = 1
			}
			return tx.Create(&stat).Error
		}
		if findErr != nil {
			return findErr
		}

		updates := map[string]interface{}{
			"request_count":    gorm.Expr("request_count + 1"),
			"total_latency_ms": gorm.Expr("total_latency_ms + ?", latencyMs),
			"last_used_at":     time.Now(),
		}
		if success {
			updates["success_count"] = gorm.Expr("success_count + 1")
		} else {
			updates["error_count"] = gorm.Expr("error_count + 1")
		}
		return tx.Model(&stat).Updates(updates).Error
	})
	if err != nil {
		log.Printf("record usage for %s/%s: %v", keyID, provider, err)
	}
}

func (l *DBLedger) Query(keyID string) ([]Record, error) {
	query := l.db.Model(&database.UsageStat{})
	if keyID != "" {
		query = query.Where("key_id = ?", keyID)
	}

	var rows []database.UsageStat
	if err := query.Order("last_used_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, Record{
			KeyID:          row.KeyID,
			Provider:       row.Provider,
			RequestCount:   row.RequestCount,
			SuccessCount:   row.SuccessCount,
			ErrorCount:     row.ErrorCount,
			TotalLatencyMs: row.TotalLatencyMs,
			LastUsedAt:     row.LastUsedAt,
		})
	}
	return out, nil
}

func (l *DBLedger) AggregateByProvider() ([]Aggregate, error) {
	return l.aggregateBy("provider")
}

func (l *DBLedger) AggregateByKey() ([]Aggregate, error) {
	return l.aggregateBy("key_id")
}

func (l *DBLedger) aggregateBy(column string) ([]Aggregate, error) {
	var rows []Aggregate
	err := l.db.Model(&database.UsageStat{}).
		Select(column + " as `group`, " +
			"COALESCE(SUM(request_count),0) as request_count, " +
			"COALESCE(SUM(success_count),0) as success_count, " +
			"COALESCE(SUM(error_count),0) as error_count, " +
			"COALESCE(SUM(total_latency_ms),0) as total_latency_ms").
		Group(column).
		Order("`group` asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate usage by %s: %w", column, err)
	}

	for i := range rows {
		rows[i].AvgLatencyMs = AvgLatency(rows[i].TotalLatencyMs, rows[i].RequestCount)
	}
	return rows, nil
}
