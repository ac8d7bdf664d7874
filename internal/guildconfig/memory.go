package guildconfig

import (
	"sync"

	"chatvault/internal/archive"
)

// MemoryStore is a ConfigStore that never touches disk. Useful for tests and
// throwaway runs. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	configs map[int64]archive.GuildConfig
}

var _ archive.ConfigStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[int64]archive.GuildConfig)}
}

func (m *MemoryStore) Get(guildID int64) archive.GuildConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[guildID]
	if !ok {
		cfg = archive.NewGuildConfig(guildID)
		m.configs[guildID] = cfg
	}
	return cfg.Clone()
}

func (m *MemoryStore) Update(guildID int64, u archive.ConfigUpdate) (archive.GuildConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[guildID]
	if !ok {
		cfg = archive.NewGuildConfig(guildID)
	}
	cfg = u.Apply(cfg)
	m.configs[guildID] = cfg
	return cfg.Clone(), nil
}

func (m *MemoryStore) All() []archive.GuildConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedConfigs(m.configs)
}
