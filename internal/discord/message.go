package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"chatvault/internal/archive"
)

// parseSnowflake converts a Discord ID to the int64 form the archive uses.
func parseSnowflake(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", id, err)
	}
	return n, nil
}

// displayName is the name a guild member sees: server nickname, then
// global display name, then username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author == nil {
		return "unknown"
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// toEntry converts a Discord message into an archive entry.
func toEntry(m *discordgo.Message, channelName string, kind archive.EventKind) (archive.Entry, error) {
	id, err := parseSnowflake(m.ID)
	if err != nil {
		return archive.Entry{}, err
	}

	var attachments []string
	for _, a := range m.Attachments {
		if a != nil && a.URL != "" {
			attachments = append(attachments, a.URL)
		}
	}

	return archive.Entry{
		ChannelName: channelName,
		MessageID:   id,
		Author:      "@" + displayName(m),
		Content:     m.ContentWithMentionsReplaced(),
		Timestamp:   m.Timestamp,
		Attachments: attachments,
		Kind:        kind,
	}, nil
}
