package archive

import (
	"fmt"
	"strings"
	"time"
)

// EventKind tags what happened to a message.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventEdited  EventKind = "edited"
	EventDeleted EventKind = "deleted"
	EventTest    EventKind = "test"
)

// Entry is one archived event. Author is written verbatim, so callers
// include any "@" prefix themselves.
type Entry struct {
	ChannelName string
	MessageID   int64
	Author      string
	Content     string
	Timestamp   time.Time
	Attachments []string
	Kind        EventKind
}

const emptyContent = "[no content]"

// Header renders the metadata block written once at the top of a file.
func Header(cfg GuildConfig, channelName string, local, generated time.Time) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "channel: %s\n", channelName)
	fmt.Fprintf(&b, "server: %d\n", cfg.GuildID)
	fmt.Fprintf(&b, "period: %s\n", PeriodLabel(cfg.ExportMode, local))
	fmt.Fprintf(&b, "export_mode: %s\n", cfg.ExportMode)
	fmt.Fprintf(&b, "generated_on: %s\n", generated.UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	return b.String()
}

// Format renders e as an entry block; local is the entry time in the
// guild's timezone.
func (e Entry) Format(local time.Time) string {
	content := e.Content
	if content == "" {
		content = emptyContent
	}
	kind := e.Kind
	if kind == "" {
		kind = EventMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### %s %s\n", local.Format("2006-01-02 15:04"), e.Author)
	b.WriteString(content)
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Message ID: %d\n", e.MessageID)
	fmt.Fprintf(&b, "- Event: %s\n", kind)
	for _, url := range e.Attachments {
		fmt.Fprintf(&b, "- Attachment: %s\n", url)
	}
	b.WriteString("\n")
	return b.String()
}
