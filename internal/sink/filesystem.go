package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chatvault/internal/archive"
)

// FileSystemSink stores bundles as files in a single directory:
//
//	<root>/
//	  <name>        (one file per bundle)
//
// Bundles are written to a temp file first and renamed into place, so a
// reader never sees a half-written bundle.
type FileSystemSink struct {
	name string
	root string
}

// NewFileSystemSink creates the sink directory if needed.
func NewFileSystemSink(name, root string) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}
	return &FileSystemSink{name: name, root: root}, nil
}

// Put writes the bundle to <root>/<name> and returns that path.
// An existing bundle with the same name is replaced.
func (s *FileSystemSink) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid bundle name %q", name)
	}
	destPath := filepath.Join(s.root, name)
	if err := s.writeFile(destPath, r, size); err != nil {
		return "", err
	}
	return destPath, nil
}

// ValidateSetup verifies that the sink directory exists and accepts writes.
func (s *FileSystemSink) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("sink root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sink root is not a directory: %s", s.root)
	}

	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("sink root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFile copies r to destPath through a temp file in the same directory.
func (s *FileSystemSink) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

var _ archive.BundleSink = (*FileSystemSink)(nil)
