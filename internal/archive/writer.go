package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// AppendEntry writes e to the file its timestamp resolves to and returns
// that file's path. A header is written first when the file is missing or
// empty. The file is only ever appended to.
func (s *Service) AppendEntry(ctx context.Context, cfg GuildConfig, e Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return "", err
	}
	path, err := s.FilePath(cfg, e)
	if err != nil {
		return "", err
	}
	local := e.Timestamp.In(loc)

	unlock := s.locks.lock(path)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", storageErr("create directory", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", storageErr("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return "", storageErr("stat", path, err)
	}

	var b strings.Builder
	if info.Size() == 0 {
		b.WriteString(Header(cfg, e.ChannelName, local, s.clock.Now()))
	}
	b.WriteString(e.Format(local))

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return "", storageErr("append", path, err)
	}
	if err := f.Close(); err != nil {
		return "", storageErr("close", path, err)
	}

	s.logger.Debug("entry archived", "guild", cfg.GuildID, "path", s.Rel(path), "message", e.MessageID, "event", e.Kind)
	return path, nil
}

// Ingest archives an event delivered by the event source. The guild's
// channel filters are applied first; archived is false when the channel is
// filtered out.
func (s *Service) Ingest(ctx context.Context, guildID, channelID int64, e Entry) (path string, archived bool, err error) {
	cfg := s.store.Get(guildID)
	if !cfg.ShouldArchive(channelID) {
		s.logger.Debug("channel filtered", "guild", guildID, "channel", channelID)
		return "", false, nil
	}
	path, err = s.AppendEntry(ctx, cfg, e)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}
