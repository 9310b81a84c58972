package auth

import (
	"context"

	"github.com/jerry-run/apirouter/internal/providers"
)

// Credential is the resolved identity of an authenticated request.
type Credential struct {
	KeyID     string
	Secret    string
	Providers []string
}

// Grants reports whether the credential's key is scoped to the provider.
func (c *Credential) Grants(provider string) bool {
	n := providers.Normalize(provider)
	for _, p := range c.Providers {
		if p == n {
			return true
		}
	}
	return false
}

type contextKey string

const credentialKey contextKey = "credential"

func withCredential(ctx context.Context, c *Credential) context.Context {
	return context.WithValue(ctx, credentialKey, c)
}

// FromContext returns the request credential, if the request was
// authenticated.
func FromContext(ctx context.Context) (*Credential, bool) {
	c, ok := ctx.Value(credentialKey).(*Credential)
	return c, ok
}
