package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chatvault/internal/archive"
)

// ExportScope selects which files an export bundles.
type ExportScope string

const (
	ScopeAll     ExportScope = "all"
	ScopeChannel ExportScope = "channel"
	ScopeSearch  ExportScope = "search"
)

// ExportRequest describes one bundle export.
type ExportRequest struct {
	Scope    ExportScope
	Channel  string   // required for ScopeChannel
	Keyword  string   // required for ScopeSearch
	Date     string   // optional file name filter, e.g. "2024-01"
	Patterns []string // optional glob filters relative to the vault
	Encrypt  bool

	// Out receives the bundle. When nil, the bundle goes to the configured sink.
	Out io.Writer
}

// ExportResult describes a finished export.
type ExportResult struct {
	Name     string
	Files    int
	Bytes    int64
	Location string // sink location; empty when written to Out
}

// ErrNoFiles is returned when an export matches no archive files.
var ErrNoFiles = errors.New("no archive files match")

// Export bundles the guild's matching files into a zip, optionally seals it
// with the configured encryptor, and delivers it.
func (a *App) Export(ctx context.Context, guildID int64, req ExportRequest) (*ExportResult, error) {
	if err := a.persistOperation(ctx, guildID, params(map[string]string{
		"scope":   string(req.Scope),
		"channel": req.Channel,
		"keyword": req.Keyword,
		"date":    req.Date,
		"pattern": strings.Join(req.Patterns, ","),
		"encrypt": fmt.Sprint(req.Encrypt),
	})); err != nil {
		return nil, err
	}
	res, err := a.export(ctx, guildID, req)
	return res, a.op.Fail(err)
}

func (a *App) export(ctx context.Context, guildID int64, req ExportRequest) (*ExportResult, error) {
	if req.Encrypt && a.encryptor == nil {
		return nil, errEncryptionDisabled
	}
	if req.Out == nil && a.sink == nil {
		return nil, errors.New("no sink configured and no output given")
	}

	cfg := a.Guild(guildID)
	paths, label, err := a.selectFiles(ctx, cfg, req)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	name := fmt.Sprintf("%s_%s.zip", label, a.ids.New())
	bundle, size, err := a.writeBundle(ctx, paths)
	if err != nil {
		return nil, err
	}
	defer os.Remove(bundle.Name())
	defer bundle.Close()

	if req.Encrypt {
		sealed, sealedSize, err := a.seal(bundle)
		if err != nil {
			return nil, err
		}
		defer os.Remove(sealed.Name())
		defer sealed.Close()
		bundle, size = sealed, sealedSize
		name += a.encryptor.Ext()
	}

	res := &ExportResult{Name: name, Files: len(paths), Bytes: size}
	if req.Out != nil {
		if _, err := io.Copy(req.Out, bundle); err != nil {
			return nil, fmt.Errorf("writing bundle: %w", err)
		}
	} else {
		if err := a.sink.ValidateSetup(ctx); err != nil {
			return nil, fmt.Errorf("sink not ready: %w", err)
		}
		loc, err := a.sink.Put(ctx, name, bundle, size)
		if err != nil {
			return nil, fmt.Errorf("delivering bundle: %w", err)
		}
		res.Location = loc
	}

	a.logger.Info("bundle exported", "guild", guildID, "name", name, "files", len(paths), "bytes", size)
	return res, nil
}

// selectFiles lists the files for req and the label the bundle is named by.
func (a *App) selectFiles(ctx context.Context, cfg archive.GuildConfig, req ExportRequest) ([]string, string, error) {
	var (
		paths []string
		label string
		err   error
		f     = archive.FileFilter{Date: req.Date, Patterns: req.Patterns}
	)

	switch req.Scope {
	case ScopeAll, "":
		label = fmt.Sprintf("guild_%d_export", cfg.GuildID)
		paths, err = a.service.ListFiles(cfg)
	case ScopeChannel:
		if strings.TrimSpace(req.Channel) == "" {
			return nil, "", errors.New("channel export requires a channel name")
		}
		label = archive.Sanitize(req.Channel) + "_export"
		f.Channel = req.Channel
		paths, err = a.service.ListFiles(cfg)
	case ScopeSearch:
		if strings.TrimSpace(req.Keyword) == "" {
			return nil, "", errors.New("search export requires a keyword")
		}
		label = "search_" + archive.Sanitize(req.Keyword) + "_export"
		paths, err = a.service.Search(ctx, cfg, req.Keyword)
	default:
		return nil, "", fmt.Errorf("unknown export scope %q", req.Scope)
	}
	if err != nil {
		return nil, "", err
	}

	paths, err = a.service.Filter(cfg, paths, f)
	if err != nil {
		return nil, "", err
	}
	return paths, label, nil
}

// writeBundle zips paths into a temp file and returns it rewound.
func (a *App) writeBundle(ctx context.Context, paths []string) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "chatvault-bundle-*.zip")
	if err != nil {
		return nil, 0, fmt.Errorf("creating bundle file: %w", err)
	}
	if err := a.service.Bundle(ctx, paths, f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	size, err := rewind(f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	return f, size, nil
}

// seal encrypts src into a new temp file and returns it rewound.
func (a *App) seal(src *os.File) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "chatvault-bundle-*"+a.encryptor.Ext())
	if err != nil {
		return nil, 0, fmt.Errorf("creating sealed bundle file: %w", err)
	}
	if err := a.encryptor.Encrypt(src, f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, fmt.Errorf("encrypting bundle: %w", err)
	}
	size, err := rewind(f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	return f, size, nil
}

func rewind(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("sizing %s: %w", f.Name(), err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewinding %s: %w", f.Name(), err)
	}
	return size, nil
}
