// Package providers manages per-provider configuration (credential, base
// URL, tunables) against a fixed whitelist of upstream providers.
package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultRateLimit = 100   // requests per minute
	DefaultTimeoutMs = 30000 // outbound call timeout
)

// Whitelist of recognized provider names. Unknown names are always
// rejected, never silently accepted.
var whitelist = []string{"brave", "openai", "claude"}

var (
	ErrNotFound        = errors.New("provider not found")
	ErrInvalidProvider = errors.New("invalid provider")
)

// Config is the stored configuration for a single provider. Configured is
// derived: true iff a non-empty credential is present.
type Config struct {
	Name        string     `json:"name"`
	Credential  string     `json:"apiKey,omitempty"`
	BaseURL     string     `json:"baseUrl,omitempty"`
	RateLimit   int        `json:"rateLimit"`
	TimeoutMs   int        `json:"timeout"`
	Configured  bool       `json:"isConfigured"`
	LastChecked *time.Time `json:"lastChecked"`
}

// Settings carries an update request. Nil fields are "not supplied" and
// preserve the existing value on merge.
type Settings struct {
	Credential *string
	BaseURL    *string
	RateLimit  *int
	TimeoutMs  *int
}

// Registry stores provider configuration. Names are case-insensitive
// everywhere; implementations normalize before lookup.
type Registry interface {
	// Upsert creates the config when absent (unset fields take defaults)
	// or merges the supplied fields over the existing config, refreshing
	// LastChecked. Fails with ErrInvalidProvider for unknown names.
	Upsert(name string, s Settings) (*Config, error)
	Get(name string) (*Config, error)
	List() ([]*Config, error)
	// CheckHealth reports whether a usable credential exists, updating
	// LastChecked even on a negative result.
	CheckHealth(name string) (bool, error)
	// Delete removes the config and its settings; false when absent.
	Delete(name string) (bool, error)
}

// Normalize lowercases a provider name so BRAVE, Brave and brave resolve
// to the same entity.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsValid reports whether name (in any casing) is a whitelisted provider.
func IsValid(name string) bool {
	n := Normalize(name)
	for _, p := range whitelist {
		if p == n {
			return true
		}
	}
	return false
}

// Valid returns the whitelist in its canonical order.
func Valid() []string {
	out := make([]string, len(whitelist))
	copy(out, whitelist)
	return out
}

func validate(name string) (string, error) {
	if !IsValid(name) {
		return "", fmt.Errorf("%w: %s", ErrInvalidProvider, name)
	}
	return Normalize(name), nil
}

// merge applies the supplied settings over an existing config and
// recomputes the derived Configured flag.
func merge(c *Config, s Settings) {
	if s.Credential != nil {
		c.Credential = *s.Credential
	}
	if s.BaseURL != nil {
		c.BaseURL = *s.BaseURL
	}
	if s.RateLimit != nil {
		c.RateLimit = *s.RateLimit
	}
	if s.TimeoutMs != nil {
		c.TimeoutMs = *s.TimeoutMs
	}
	c.Configured = c.Credential != ""
}

func newConfig(name string, s Settings) *Config {
	c := &Config{
		Name:      name,
		RateLimit: DefaultRateLimit,
		TimeoutMs: DefaultTimeoutMs,
	}
	merge(c, s)
	return c
}
