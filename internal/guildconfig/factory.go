package guildconfig

import (
	"fmt"

	"chatvault/internal/archive"
	"chatvault/internal/config"
)

// NewStoreFromConfig creates a ConfigStore based on the guild store config type.
func NewStoreFromConfig(cfg config.GuildStoreConfig, logger archive.Logger) (archive.ConfigStore, error) {
	switch cfg.Type {
	case "file", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file guild store requires path to be set")
		}
		return NewFileStore(cfg.Path, cfg.Strict, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown guild store type: %s", cfg.Type)
	}
}
