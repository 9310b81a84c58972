// Package keys implements API key creation, lookup, verification and
// soft deletion.
package keys

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jerry-run/apirouter/internal/providers"
)

// SecretPrefix is carried by every generated secret so garbage input can
// be rejected before touching the store.
const SecretPrefix = "ar_"

const secretLength = 32

var ErrNotFound = errors.New("key not found")

// ValidationError reports bad input to Create. It is always locally
// recoverable and surfaced to the caller as a rejected request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ExpiryPolicy names how long a new key stays valid.
type ExpiryPolicy string

const (
	ExpiryNever   ExpiryPolicy = "never"
	Expiry90Days  ExpiryPolicy = "90days"
	Expiry180Days ExpiryPolicy = "180days"
)

// Key is a caller-held bearer credential scoped to a set of providers.
// Only Active and LastUsedAt ever change after creation.
type Key struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Secret     string     `json:"key"`
	Providers  []string   `json:"providers"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	Active     bool       `json:"isActive"`
}

// Store is the key storage contract. Delete is a soft delete: Get keeps
// returning the record with Active=false, List and GetBySecret do not.
type Store interface {
	Create(name string, providerNames []string, expiry ExpiryPolicy) (*Key, error)
	Get(id string) (*Key, error)
	// GetBySecret resolves an active key by its secret.
	GetBySecret(secret string) (*Key, error)
	// List returns active keys in creation order.
	List() ([]*Key, error)
	Delete(id string) (bool, error)
	// RecordUsage stamps LastUsedAt on the active key owning secret.
	// It never fails; unknown or inactive secrets are a no-op.
	RecordUsage(secret string)
	// Verify reports whether secret belongs to an active, unexpired key
	// granted the given provider. It never fails.
	Verify(secret, provider string) bool
}

// NewSecret generates an opaque bearer credential with the recognizable
// fixed prefix.
func NewSecret() string {
	raw := SecretPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:secretLength]
}

func validateCreate(name string, providerNames []string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Message: "key name is required"}
	}
	if len(providerNames) == 0 {
		return &ValidationError{Message: "at least one provider must be specified"}
	}

	var invalid []string
	for _, p := range providerNames {
		if !providers.IsValid(p) {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Message: fmt.Sprintf("invalid providers: %s", strings.Join(invalid, ", "))}
	}
	return nil
}

// normalizeProviders lowercases and deduplicates, preserving insertion
// order for display.
func normalizeProviders(providerNames []string) []string {
	seen := make(map[string]bool, len(providerNames))
	out := make([]string, 0, len(providerNames))
	for _, p := range providerNames {
		n := providers.Normalize(p)
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func resolveExpiry(policy ExpiryPolicy, now time.Time) (*time.Time, error) {
	if policy == "" {
		policy = Expiry90Days
	}
	switch policy {
	case ExpiryNever:
		return nil, nil
	case Expiry90Days:
		t := now.Add(90 * 24 * time.Hour)
		return &t, nil
	case Expiry180Days:
		t := now.Add(180 * 24 * time.Hour)
		return &t, nil
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("unknown expiry policy: %s", policy)}
	}
}

func expired(k *Key, now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

func grantsProvider(k *Key, provider string) bool {
	n := providers.Normalize(provider)
	for _, p := range k.Providers {
		if p == n {
			return true
		}
	}
	return false
}

func copyKey(k *Key) *Key {
	out := *k
	out.Providers = append([]string(nil), k.Providers...)
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		out.ExpiresAt = &t
	}
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		out.LastUsedAt = &t
	}
	return &out
}
