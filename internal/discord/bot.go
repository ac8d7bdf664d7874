// Package discord feeds live and historical Discord messages into the
// archive.
package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"chatvault/internal/archive"
)

// Intents requested from the gateway. Message content is a privileged
// intent and must also be enabled for the bot in the developer portal.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

// Ingester archives one event. archive.Service implements it.
type Ingester interface {
	Ingest(ctx context.Context, guildID, channelID int64, e archive.Entry) (path string, archived bool, err error)
}

// restAPI is the subset of the Discord REST API the bot calls.
// *discordgo.Session implements it.
type restAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Bot connects a Discord session to the archive.
type Bot struct {
	session *discordgo.Session
	state   *discordgo.State
	api     restAPI
	ingest  Ingester
	logger  archive.Logger
}

// NewBot creates a bot session for token. cacheSize messages per channel
// are kept in memory so deletions can still be archived with their content.
func NewBot(token string, cacheSize int, ingest Ingester, logger archive.Logger) (*Bot, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.State.MaxMessageCount = cacheSize

	b := newBot(session, session.State, ingest, logger)
	b.session = session
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onMessageUpdate)
	session.AddHandler(b.onMessageDelete)
	return b, nil
}

func newBot(api restAPI, state *discordgo.State, ingest Ingester, logger archive.Logger) *Bot {
	return &Bot{api: api, state: state, ingest: ingest, logger: logger}
}

// Run connects to the gateway and archives events until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.session == nil {
		return errors.New("bot has no gateway session")
	}
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening gateway connection: %w", err)
	}
	b.logger.Info("gateway connected")

	<-ctx.Done()

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("closing gateway connection: %w", err)
	}
	b.logger.Info("gateway disconnected")
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("bot ready", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	b.handle(context.Background(), m.Message, archive.EventMessage)
}

func (b *Bot) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	b.handle(context.Background(), m.Message, archive.EventEdited)
}

// onMessageDelete archives the cached copy of the message. Deletes of
// messages that were never cached carry no content or author and are
// dropped.
func (b *Bot) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	if m.BeforeDelete == nil {
		b.logger.Debug("delete of uncached message ignored", "message", m.ID)
		return
	}
	b.handle(context.Background(), m.BeforeDelete, archive.EventDeleted)
}

// handle archives a gateway event. Bot authors and direct messages are
// skipped. Errors are logged: a failed append must not stop the event loop.
func (b *Bot) handle(ctx context.Context, m *discordgo.Message, kind archive.EventKind) {
	if m == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if err := b.store(ctx, m.GuildID, m, kind); err != nil {
		b.logger.Error("failed to archive message", "guild", m.GuildID, "channel", m.ChannelID, "message", m.ID, "error", err)
	}
}

func (b *Bot) store(ctx context.Context, guildID string, m *discordgo.Message, kind archive.EventKind) error {
	gid, err := parseSnowflake(guildID)
	if err != nil {
		return err
	}
	cid, err := parseSnowflake(m.ChannelID)
	if err != nil {
		return err
	}

	e, err := toEntry(m, b.channelName(ctx, m.ChannelID), kind)
	if err != nil {
		return err
	}
	_, _, err = b.ingest.Ingest(ctx, gid, cid, e)
	return err
}

// channelName resolves a channel's name from the state cache, then the
// REST API, and falls back to the channel ID.
func (b *Bot) channelName(ctx context.Context, channelID string) string {
	if b.state != nil {
		if ch, err := b.state.Channel(channelID); err == nil && ch.Name != "" {
			return ch.Name
		}
	}
	if ch, err := b.api.Channel(channelID, discordgo.WithContext(ctx)); err == nil && ch.Name != "" {
		return ch.Name
	}
	return channelID
}
