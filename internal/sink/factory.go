package sink

import (
	"context"
	"fmt"

	"chatvault/internal/archive"
	"chatvault/internal/config"
)

// NewSinkFromConfig creates a BundleSink based on the sink config type.
// An empty type means exports are only written locally, and returns nil.
func NewSinkFromConfig(ctx context.Context, cfg config.SinkConfig) (archive.BundleSink, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemorySink(cfg.Name), nil
	case "s3":
		s, err := NewS3Sink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem sink requires fs_root to be set")
		}
		s, err := NewFileSystemSink(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}
