package keys

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jerry-run/apirouter/internal/database"
)

// DBStore persists keys in the relational backend. The unique index on the
// secret column enforces secret uniqueness across all keys ever created;
// deactivated rows are kept, so their secrets stay reserved.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Create(name string, providerNames []string, expiry ExpiryPolicy) (*Key, error) {
	if err := validateCreate(name, providerNames); err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt, err := resolveExpiry(expiry, now)
	if err != nil {
		return nil, err
	}

	row := database.APIKey{
		ID:        uuid.NewString(),
		Name:      name,
		Providers: strings.Join(normalizeProviders(providerNames), ","),
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Active:    true,
	}

	// A fresh secret can collide with an existing row only through uuid
	// reuse; retry a couple of times rather than fail the request.
	var createErr error
	for attempt := 0; attempt < 3; attempt++ {
		row.Secret = NewSecret()
		createErr = s.db.Create(&row).Error
		if createErr == nil {
			return keyFromRow(&row), nil
		}
	}
	return nil, fmt.Errorf("create key: %w", createErr)
}

func (s *DBStore) Get(id string) (*Key, error) {
	var row database.APIKey
	err := s.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find key: %w", err)
	}
	return keyFromRow(&row), nil
}

func (s *DBStore) GetBySecret(secret string) (*Key, error) {
	row, err := s.findActive(secret)
	if err != nil {
		return nil, err
	}
	return keyFromRow(row), nil
}

func (s *DBStore) List() ([]*Key, error) {
	var rows []database.APIKey
	if err := s.db.Where("active = ?", true).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	out := make([]*Key, 0, len(rows))
	for i := range rows {
		out = append(out, keyFromRow(&rows[i]))
	}
	return out, nil
}

func (s *DBStore) Delete(id string) (bool, error) {
	result := s.db.Model(&database.APIKey{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return false, fmt.Errorf("deactivate key: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *DBStore) RecordUsage(secret string) {
	err := s.db.Model(&database.APIKey{}).
		Where("secret = ? AND active = ?", secret, true).
		Update("last_used_at", time.Now()).Error
	if err != nil {
		// Usage stamping must never break a request that already passed
		// authorization.
		log.Printf("record key usage: %v", err)
	}
}

func (s *DBStore) Verify(secret, provider string) bool {
	row, err := s.findActive(secret)
	if err != nil {
		return false
	}
	k := keyFromRow(row)
	if expired(k, time.Now()) {
		return false
	}
	return grantsProvider(k, provider)
}

func (s *DBStore) findActive(secret string) (*database.APIKey, error) {
	var row database.APIKey
	err := s.db.Where("secret = ? AND active = ?", secret, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find key by secret: %w", err)
	}
	return &row, nil
}

func keyFromRow(row *database.APIKey) *Key {
	return &Key{
		ID:         row.ID,
		Name:       row.Name,
		Secret:     row.Secret,
		Providers:  strings.Split(row.Providers, ","),
		CreatedAt:  row.CreatedAt,
		ExpiresAt:  row.ExpiresAt,
		LastUsedAt: row.LastUsedAt,
		Active:     row.Active,
	}
}
