package keys

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps keys in mutex-guarded maps. Secrets of deactivated
// keys stay reserved so a secret is unique across all keys ever created.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*Key
	bySecret map[string]string // secret -> key id, deactivated included
	order    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*Key),
		bySecret: make(map[string]string),
	}
}

func (m *MemoryStore) Create(name string, providerNames []string, expiry ExpiryPolicy) (*Key, error) {
	if err := validateCreate(name, providerNames); err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt, err := resolveExpiry(expiry, now)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	secret := NewSecret()
	for _, taken := m.bySecret[secret]; taken; _, taken = m.bySecret[secret] {
		secret = NewSecret()
	}

	k := &Key{
		ID:        uuid.NewString(),
		Name:      name,
		Secret:    secret,
		Providers: normalizeProviders(providerNames),
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Active:    true,
	}

	m.byID[k.ID] = k
	m.bySecret[k.Secret] = k.ID
	m.order = append(m.order, k.ID)
	return copyKey(k), nil
}

func (m *MemoryStore) Get(id string) (*Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyKey(k), nil
}

func (m *MemoryStore) GetBySecret(secret string) (*Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := m.lookupActive(secret)
	if k == nil {
		return nil, ErrNotFound
	}
	return copyKey(k), nil
}

func (m *MemoryStore) List() ([]*Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Key, 0, len(m.order))
	for _, id := range m.order {
		if k := m.byID[id]; k.Active {
			out = append(out, copyKey(k))
		}
	}
	return out, nil
}

func (m *MemoryStore) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	k.Active = false
	return true, nil
}

func (m *MemoryStore) RecordUsage(secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k := m.lookupActive(secret); k != nil {
		now := time.Now()
		k.LastUsedAt = &now
	}
}

func (m *MemoryStore) Verify(secret, provider string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := m.lookupActive(secret)
	if k == nil || expired(k, time.Now()) {
		return false
	}
	return grantsProvider(k, provider)
}

// lookupActive resolves a secret to its key when the key is still active.
// Callers must hold the lock.
func (m *MemoryStore) lookupActive(secret string) *Key {
	id, ok := m.bySecret[secret]
	if !ok {
		return nil
	}
	k := m.byID[id]
	if !k.Active {
		return nil
	}
	return k
}
