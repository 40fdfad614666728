package storage

import (
	"sync"

	config "github.com/evmstream/processor/configs"
)

// MemoryConnector keeps progress in memory. Useful for tests and for runs
// whose sink is external (e.g. Kafka) and restart from scratch anyway.
type MemoryConnector struct {
	mu     sync.Mutex
	height int64
	values map[string]string
}

func NewMemoryConnector(cfg *config.MemoryConfig) (*MemoryConnector, error) {
	return &MemoryConnector{
		height: -1,
		values: make(map[string]string),
	}, nil
}

func (m *MemoryConnector) Connect() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

func (m *MemoryConnector) Transact(from int64, to int64, fn func(store Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]string, len(m.values))
	for k, v := range m.values {
		staged[k] = v
	}
	if err := fn(&MemoryStore{values: staged}); err != nil {
		return err
	}
	m.values = staged
	return nil
}

func (m *MemoryConnector) Advance(height int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
	return nil
}

func (m *MemoryConnector) Close() error {
	return nil
}

// MemoryStore is the handle passed to the handler. Writes land in a staged
// copy that is discarded when the handler fails.
type MemoryStore struct {
	values map[string]string
}

func (s *MemoryStore) Set(key, value string) {
	s.values[key] = value
}

func (s *MemoryStore) Get(key string) (string, bool) {
	value, ok := s.values[key]
	return value, ok
}
