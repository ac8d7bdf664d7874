package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"

	"chatvault/internal/archive"
)

// Backfill limits.
const (
	MaxBackfill = 1000
	pageSize    = 100
)

// ErrInvalidLimit is returned for a backfill limit outside 1..MaxBackfill.
var ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", MaxBackfill)

// ErrChannelNotInGuild is returned when backfilling a channel that belongs
// to another guild.
var ErrChannelNotInGuild = errors.New("channel does not belong to guild")

// Backfill archives up to limit of the channel's earliest messages, oldest
// first. Each message goes through the same filter and append path as a
// live event, so re-running a backfill appends duplicates rather than
// corrupting files. It returns how many messages were archived.
func (b *Bot) Backfill(ctx context.Context, guildID, channelID string, limit int) (int, error) {
	if limit < 1 || limit > MaxBackfill {
		return 0, ErrInvalidLimit
	}

	ch, err := b.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("looking up channel %s: %w", channelID, err)
	}
	if ch.GuildID != guildID {
		return 0, fmt.Errorf("%w: %s", ErrChannelNotInGuild, channelID)
	}

	archived := 0
	after := "0"
	for archived < limit {
		want := min(pageSize, limit-archived)
		page, err := b.api.ChannelMessages(channelID, want, "", after, "", discordgo.WithContext(ctx))
		if err != nil {
			return archived, fmt.Errorf("fetching messages after %s: %w", after, err)
		}
		if len(page) == 0 {
			break
		}

		// Pages arrive newest first.
		slices.SortFunc(page, compareSnowflakes)
		for _, m := range page {
			if err := ctx.Err(); err != nil {
				return archived, err
			}
			if err := b.store(ctx, guildID, m, archive.EventMessage); err != nil {
				return archived, fmt.Errorf("archiving message %s: %w", m.ID, err)
			}
			archived++
		}

		after = page[len(page)-1].ID
		if len(page) < want {
			break
		}
	}

	b.logger.Info("backfill complete", "guild", guildID, "channel", channelID, "messages", archived)
	return archived, nil
}

// compareSnowflakes orders messages by ID, which is creation order.
func compareSnowflakes(a, b *discordgo.Message) int {
	if len(a.ID) != len(b.ID) {
		return len(a.ID) - len(b.ID)
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
