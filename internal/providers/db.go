package providers

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jerry-run/apirouter/internal/database"
)

// DBRegistry stores provider configs in the relational backend. List order
// is lexical by name, which is stable across restarts.
type DBRegistry struct {
	db *gorm.DB
}

func NewDBRegistry(db *gorm.DB) *DBRegistry {
	return &DBRegistry{db: db}
}

func (r *DBRegistry) Upsert(name string, s Settings) (*Config, error) {
	normalized, err := validate(name)
	if err != nil {
		return nil, err
	}

	var row database.ProviderConfig
	findErr := r.db.Where("name = ?", normalized).First(&row).Error
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		c := newConfig(normalized, s)
		row = toRow(c)
		if err := r.db.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("create provider %s: %w", normalized, err)
		}
		return fromRow(&row), nil
	}
	if findErr != nil {
		return nil, fmt.Errorf("find provider %s: %w", normalized, findErr)
	}

	c := fromRow(&row)
	merge(c, s)
	now := time.Now()
	c.LastChecked = &now

	updates := map[string]interface{}{
		"credential":   c.Credential,
		"base_url":     c.BaseURL,
		"rate_limit":   c.RateLimit,
		"timeout_ms":   c.TimeoutMs,
		"configured":   c.Configured,
		"last_checked": c.LastChecked,
	}
	if err := r.db.Model(&row).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update provider %s: %w", normalized, err)
	}
	return c, nil
}

func (r *DBRegistry) Get(name string) (*Config, error) {
	var row database.ProviderConfig
	err := r.db.Where("name = ?", Normalize(name)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find provider %s: %w", name, err)
	}
	return fromRow(&row), nil
}

func (r *DBRegistry) List() ([]*Config, error) {
	var rows []database.ProviderConfig
	if err := r.db.Order("name asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make([]*Config, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

func (r *DBRegistry) CheckHealth(name string) (bool, error) {
	c, err := r.Get(name)
	if err != nil {
		return false, err
	}

	now := time.Now()
	err = r.db.Model(&database.ProviderConfig{}).
		Where("name = ?", c.Name).
		Update("last_checked", now).Error
	if err != nil {
		return false, fmt.Errorf("update last_checked for %s: %w", c.Name, err)
	}
	return c.Configured, nil
}

func (r *DBRegistry) Delete(name string) (bool, error) {
	result := r.db.Where("name = ?", Normalize(name)).Delete(&database.ProviderConfig{})
	if result.Error != nil {
		return false, fmt.Errorf("delete provider %s: %w", name, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func toRow(c *Config) database.ProviderConfig {
	return database.ProviderConfig{
		Name:        c.Name,
		Credential:  c.Credential,
		BaseURL:     c.BaseURL,
		RateLimit:   c.RateLimit,
		TimeoutMs:   c.TimeoutMs,
		Configured:  c.Configured,
		LastChecked: c.LastChecked,
	}
}

func fromRow(row *database.ProviderConfig) *Config {
	return &Config{
		Name:        row.Name,
		Credential:  row.Credential,
		BaseURL:     row.BaseURL,
		RateLimit:   row.RateLimit,
		TimeoutMs:   row.TimeoutMs,
		Configured:  row.Configured,
		LastChecked: row.LastChecked,
	}
}
