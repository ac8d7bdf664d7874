package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/cases"

	"chatvault/internal/fs"
)

// archiveExt is the extension of every archive file.
const archiveExt = ".md"

// ListFiles returns every archive file under the guild's vault in walk order.
func (s *Service) ListFiles(cfg GuildConfig) ([]string, error) {
	dir, err := s.VaultDir(cfg)
	if err != nil {
		return nil, err
	}
	paths, err := fs.FindFiles(dir, archiveExt)
	if err != nil {
		return nil, storageErr("list", dir, err)
	}
	return paths, nil
}

// Search returns the guild's files containing keyword, compared without
// regard to case. Files that cannot be read are skipped; invalid UTF-8 is
// dropped before matching. Results may miss entries appended mid-scan.
func (s *Service) Search(ctx context.Context, cfg GuildConfig, keyword string) ([]string, error) {
	paths, err := s.ListFiles(cfg)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	needle := fold.String(strings.ToValidUTF8(keyword, ""))

	var matches []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", s.Rel(p), "error", err)
			continue
		}
		text := fold.String(strings.ToValidUTF8(string(data), ""))
		if strings.Contains(text, needle) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// FileFilter narrows a file listing. Zero fields do not filter.
type FileFilter struct {
	// Channel keeps files whose sanitized channel slug appears as a path
	// directory segment, or as the name of a file at the vault root.
	Channel string
	// Date keeps files whose name contains this text, e.g. "2024-01".
	Date string
	// Patterns keeps files matching any glob, see fs.PatternMatcher.
	Patterns []string
}

// Filter applies f to paths listed for cfg.
func (s *Service) Filter(cfg GuildConfig, paths []string, f FileFilter) ([]string, error) {
	dir, err := s.VaultDir(cfg)
	if err != nil {
		return nil, err
	}
	matcher := fs.NewPatternMatcher(f.Patterns)

	var out []string
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			continue
		}
		if f.Channel != "" && !hasChannelSegment(rel, Sanitize(f.Channel)) {
			continue
		}
		if f.Date != "" && !strings.Contains(filepath.Base(rel), f.Date) {
			continue
		}
		if !matcher.Match(rel) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// hasChannelSegment reports whether rel, a path relative to a vault, belongs
// to the channel with the given slug. Directory segments are compared; the
// file name stem only counts for flat files, whose name is the channel.
func hasChannelSegment(rel, slug string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) == 1 {
		return strings.TrimSuffix(parts[0], archiveExt) == slug
	}
	return slices.Contains(parts[:len(parts)-1], slug)
}

// Bundle writes a zip archive of paths to w. Entry names are the paths
// relative to the archive root, so guild, vault and channel directories are
// preserved. Each file is read under its write lock.
func (s *Service) Bundle(ctx context.Context, paths []string, w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil || escapes(rel) {
			zw.Close()
			return fmt.Errorf("%w: %s is outside the archive root", ErrPathEscapesVault, p)
		}
		if err := s.addToBundle(zw, p, filepath.ToSlash(rel)); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing bundle: %w", err)
	}
	return nil
}

func (s *Service) addToBundle(zw *zip.Writer, path, name string) error {
	unlock := s.locks.lock(path)
	defer unlock()

	f, err := os.Open(path)
	if err != nil {
		return storageErr("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return storageErr("stat", path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("building zip header for %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	entry, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s to bundle: %w", name, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return storageErr("read", path, err)
	}
	return nil
}

// Purge deletes the guild's archive files, optionally only those of one
// channel, and returns how many were removed. Files already gone are not
// counted. A later append simply recreates a purged file with a new header.
func (s *Service) Purge(cfg GuildConfig, channelName string) (int, error) {
	paths, err := s.ListFiles(cfg)
	if err != nil {
		return 0, err
	}
	if channelName != "" {
		paths, err = s.Filter(cfg, paths, FileFilter{Channel: channelName})
		if err != nil {
			return 0, err
		}
	}

	removed := 0
	for _, p := range paths {
		ok, err := s.remove(p)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}

	s.logger.Info("archive purged", "guild", cfg.GuildID, "channel", channelName, "removed", removed)
	return removed, nil
}

func (s *Service) remove(path string) (bool, error) {
	unlock := s.locks.lock(path)
	defer unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, storageErr("remove", path, err)
	}
	return true, nil
}

// Stats summarizes a guild's vault.
type Stats struct {
	VaultPath string
	Files     int
	Bytes     int64
}

// Stats counts the guild's archive files and their total size.
func (s *Service) Stats(cfg GuildConfig) (Stats, error) {
	paths, err := s.ListFiles(cfg)
	if err != nil {
		return Stats{}, err
	}
	total, err := fs.TotalSize(paths)
	if err != nil {
		return Stats{}, storageErr("stat", cfg.VaultPath, err)
	}
	return Stats{VaultPath: cfg.VaultPath, Files: len(paths), Bytes: total}, nil
}
