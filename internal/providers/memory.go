package providers

import (
	"sync"
	"time"
)

// MemoryRegistry keeps provider configs in a mutex-guarded map. List order
// is insertion order.
type MemoryRegistry struct {
	mu      sync.RWMutex
	configs map[string]*Config
	order   []string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{configs: make(map[string]*Config)}
}

func (m *MemoryRegistry) Upsert(name string, s Settings) (*Config, error) {
	normalized, err := validate(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.configs[normalized]
	if !ok {
		c = newConfig(normalized, s)
		m.configs[normalized] = c
		m.order = append(m.order, normalized)
		return copyConfig(c), nil
	}

	merge(c, s)
	now := time.Now()
	c.LastChecked = &now
	return copyConfig(c), nil
}

func (m *MemoryRegistry) Get(name string) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.configs[Normalize(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConfig(c), nil
}

func (m *MemoryRegistry) List() ([]*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Config, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, copyConfig(m.configs[name]))
	}
	return out, nil
}

func (m *MemoryRegistry) CheckHealth(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.configs[Normalize(name)]
	if !ok {
		return false, ErrNotFound
	}
	now := time.Now()
	c.LastChecked = &now
	return c.Configured, nil
}

func (m *MemoryRegistry) Delete(name string) (bool, error) {
	normalized := Normalize(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.configs[normalized]; !ok {
		return false, nil
	}
	delete(m.configs, normalized)
	for i, n := range m.order {
		if n == normalized {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func copyConfig(c *Config) *Config {
	out := *c
	if c.LastChecked != nil {
		t := *c.LastChecked
		out.LastChecked = &t
	}
	return &out
}
