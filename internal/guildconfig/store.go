package guildconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"

	"chatvault/internal/archive"
)

// FileStore keeps every guild's configuration in memory and rewrites the
// whole TOML table on each change. The in-memory copy is authoritative once
// loaded. Suitable only for small, rarely changing data.
type FileStore struct {
	path   string
	strict bool
	logger archive.Logger

	mu      sync.Mutex
	configs map[int64]archive.GuildConfig
}

var _ archive.ConfigStore = (*FileStore)(nil)

// NewFileStore loads the table at path. A missing file yields an empty table.
// An unreadable or corrupt file also yields an empty table (with a warning)
// unless strict is set, in which case a *archive.ConfigLoadError is returned.
func NewFileStore(path string, strict bool, logger archive.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating config table directory: %w", err)
	}

	s := &FileStore{
		path:    path,
		strict:  strict,
		logger:  logger,
		configs: make(map[int64]archive.GuildConfig),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return s.degrade(err)
	}

	var t table
	md, err := toml.Decode(string(data), &t)
	if err != nil {
		return s.degrade(err)
	}

	configs, skipped := decodeTable(t, md)
	for _, key := range skipped {
		s.logger.Warn("ignoring guild config with invalid id", "key", key)
	}
	s.configs = configs
	s.logger.Debug("guild config table loaded", "path", s.path, "guilds", len(configs))
	return nil
}

// degrade handles an unusable table: strict stores refuse it, the others
// start empty.
func (s *FileStore) degrade(err error) error {
	if s.strict {
		return &archive.ConfigLoadError{Path: s.path, Err: err}
	}
	s.logger.Warn("guild config table unreadable, starting empty", "path", s.path, "error", err)
	return nil
}

// Get returns the guild's configuration, creating and persisting a default
// record on first access. A failed write is logged; the record stays cached.
func (s *FileStore) Get(guildID int64) archive.GuildConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[guildID]
	if !ok {
		cfg = archive.NewGuildConfig(guildID)
		s.configs[guildID] = cfg
		if err := s.persist(); err != nil {
			s.logger.Error("persisting new guild config", "guild", guildID, "error", err)
		}
	}
	return cfg.Clone()
}

// Update applies u to the guild's configuration and rewrites the table.
func (s *FileStore) Update(guildID int64, u archive.ConfigUpdate) (archive.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[guildID]
	if !ok {
		cfg = archive.NewGuildConfig(guildID)
	}
	cfg = u.Apply(cfg)
	s.configs[guildID] = cfg

	if err := s.persist(); err != nil {
		return cfg.Clone(), err
	}
	return cfg.Clone(), nil
}

// All returns every cached configuration ordered by guild ID.
func (s *FileStore) All() []archive.GuildConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedConfigs(s.configs)
}

// persist rewrites the table through a temp file and rename. Callers hold s.mu.
func (s *FileStore) persist() error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(encodeTable(s.configs)); err != nil {
		return fmt.Errorf("encoding guild config table: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-guilds-*")
	if err != nil {
		return &archive.StorageError{Op: "create temp file", Path: s.path, Err: err}
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return &archive.StorageError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &archive.StorageError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return &archive.StorageError{Op: "rename", Path: s.path, Err: err}
	}

	success = true
	return nil
}

func sortedConfigs(configs map[int64]archive.GuildConfig) []archive.GuildConfig {
	out := make([]archive.GuildConfig, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, cfg.Clone())
	}
	slices.SortFunc(out, func(a, b archive.GuildConfig) int {
		switch {
		case a.GuildID < b.GuildID:
			return -1
		case a.GuildID > b.GuildID:
			return 1
		}
		return 0
	})
	return out
}
