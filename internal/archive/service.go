package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// cacheDirName is the auxiliary cache directory kept under a vault.
const cacheDirName = ".cache"

// Service writes and serves the archive tree rooted at a single directory:
//
//	<root>/
//	  <guildID>/
//	    <vaultPath>/
//	      <resolved path>.md
//
// All writes to one file are serialized by a per-path lock, so concurrent
// live events and backfills never duplicate a header. Guilds never share
// files, so no lock spans more than one guild.
type Service struct {
	root   string
	store  ConfigStore
	logger Logger
	clock  Clock
	locks  *pathLocks
}

// NewService creates the archive root if needed and returns a Service over it.
func NewService(root string, store ConfigStore, logger Logger, clock Clock) (*Service, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, storageErr("create archive root", root, err)
	}
	return &Service{
		root:   root,
		store:  store,
		logger: logger,
		clock:  clock,
		locks:  newPathLocks(),
	}, nil
}

// Root returns the archive root directory.
func (s *Service) Root() string { return s.root }

// Config returns the guild's configuration from the backing store.
func (s *Service) Config(guildID int64) GuildConfig {
	return s.store.Get(guildID)
}

// UpdateConfig applies u to the guild's configuration. Timezone changes are
// validated here so an unusable zone never reaches the store.
func (s *Service) UpdateConfig(guildID int64, u ConfigUpdate) (GuildConfig, error) {
	if u.Timezone != nil {
		if _, err := LoadLocation(*u.Timezone); err != nil {
			return GuildConfig{}, err
		}
	}
	cfg, err := s.store.Update(guildID, u)
	if err != nil {
		return GuildConfig{}, fmt.Errorf("updating guild %d: %w", guildID, err)
	}
	s.logger.Info("guild config updated", "guild", guildID)
	return cfg, nil
}

// VaultDir returns the absolute directory holding the guild's archive files.
func (s *Service) VaultDir(cfg GuildConfig) (string, error) {
	guildDir := filepath.Join(s.root, strconv.FormatInt(cfg.GuildID, 10))
	dir := filepath.Join(guildDir, cfg.VaultPath)
	rel, err := filepath.Rel(guildDir, dir)
	if err != nil || escapes(rel) {
		return "", fmt.Errorf("%w: vault path %q", ErrPathEscapesVault, cfg.VaultPath)
	}
	return dir, nil
}

// FilePath returns the absolute archive file an event would be written to.
func (s *Service) FilePath(cfg GuildConfig, e Entry) (string, error) {
	rel, err := ResolvePath(cfg, e.ChannelName, e.Timestamp)
	if err != nil {
		return "", err
	}
	dir, err := s.VaultDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, rel), nil
}

// Rel returns path relative to the archive root, using forward slashes.
// Paths outside the root are returned unchanged.
func (s *Service) Rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || escapes(rel) {
		return path
	}
	return filepath.ToSlash(rel)
}

// ClearCache removes the vault's auxiliary cache directory. It is a no-op
// when the directory does not exist.
func (s *Service) ClearCache(cfg GuildConfig) error {
	dir, err := s.VaultDir(cfg)
	if err != nil {
		return err
	}
	cacheDir := filepath.Join(dir, cacheDirName)
	if err := os.RemoveAll(cacheDir); err != nil {
		return storageErr("clear cache", cacheDir, err)
	}
	s.logger.Info("cache cleared", "guild", cfg.GuildID)
	return nil
}
