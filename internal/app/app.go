package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"chatvault/internal/archive"
	"chatvault/internal/config"
	"chatvault/internal/database"
	"chatvault/internal/discord"
	"chatvault/internal/encryption"
	"chatvault/internal/guildconfig"
	"chatvault/internal/sink"
)

// Version is the chatvault release.
const Version = "0.1.0"

// App is the application layer between the CLI and the archive service.
// It constructs every dependency from config, exposes the admin operations
// by guild ID, and records mutating operations in the history database.
type App struct {
	cfg       *config.Config
	store     archive.ConfigStore
	service   *archive.Service
	sink      archive.BundleSink
	encryptor archive.Encryptor
	history   archive.History
	logger    archive.Logger
	clock     archive.Clock
	ids       archive.IDGenerator
	op        *Operation
	logFile   *os.File
}

// Options tune an App beyond what the config file holds.
type Options struct {
	Verbose bool
}

// New creates a fully wired App. operation names the CLI command being run
// (e.g. "Purge", "Export"). The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, operation string, opts Options) (*App, error) {
	opID := uuid.New().String()
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.op = NewOperation(operation)
	a.logFile = logFile
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, logger archive.Logger) (*App, error) {
	clock := archive.RealClock{}

	store, err := guildconfig.NewStoreFromConfig(cfg.GuildStore, logger)
	if err != nil {
		return nil, fmt.Errorf("creating guild config store: %w", err)
	}

	svc, err := archive.NewService(cfg.ArchiveRoot, store, logger, clock)
	if err != nil {
		return nil, fmt.Errorf("creating archive service: %w", err)
	}

	bundleSink, err := sink.NewSinkFromConfig(ctx, cfg.Sink)
	if err != nil {
		return nil, fmt.Errorf("creating sink: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, clock)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	return &App{
		cfg:       cfg,
		store:     store,
		service:   svc,
		sink:      bundleSink,
		encryptor: enc,
		history:   db,
		logger:    logger,
		clock:     clock,
		ids:       archive.UUIDGenerator{},
		op:        NewOperation(""),
	}, nil
}

// persistOperation records the running operation in the history database.
// Only mutating commands call it.
func (a *App) persistOperation(ctx context.Context, guildID int64, parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	rec, err := a.history.CreateOperation(ctx, guildID, a.op.Operation, parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = rec.ID
	a.op.GuildID = guildID
	a.op.Parameters = parameters
	return nil
}

// Guild returns a guild's configuration, creating the default record on
// first access.
func (a *App) Guild(guildID int64) archive.GuildConfig {
	return a.service.Config(guildID)
}

// Guilds returns every configured guild.
func (a *App) Guilds() []archive.GuildConfig {
	return a.store.All()
}

// UpdateGuild applies u to the guild's configuration.
func (a *App) UpdateGuild(ctx context.Context, guildID int64, u archive.ConfigUpdate) (archive.GuildConfig, error) {
	if u.Empty() {
		return archive.GuildConfig{}, errors.New("no settings to change")
	}
	if u.ExportMode != nil && !u.ExportMode.Valid() {
		return archive.GuildConfig{}, fmt.Errorf("unknown export mode %q", *u.ExportMode)
	}
	if err := a.persistOperation(ctx, guildID, describeUpdate(u)); err != nil {
		return archive.GuildConfig{}, err
	}
	cfg, err := a.service.UpdateConfig(guildID, u)
	return cfg, a.op.Fail(err)
}

// ListFiles returns the guild's archive files relative to the archive root.
func (a *App) ListFiles(guildID int64) ([]string, error) {
	paths, err := a.service.ListFiles(a.Guild(guildID))
	if err != nil {
		return nil, err
	}
	return a.rel(paths), nil
}

// Search returns the guild's files containing keyword, relative to the
// archive root.
func (a *App) Search(ctx context.Context, guildID int64, keyword string) ([]string, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, errors.New("keyword must not be empty")
	}
	paths, err := a.service.Search(ctx, a.Guild(guildID), keyword)
	if err != nil {
		return nil, err
	}
	return a.rel(paths), nil
}

func (a *App) rel(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = a.service.Rel(p)
	}
	return out
}

// Purge deletes the guild's archive files, or one channel's when channel
// is non-empty, and returns how many were removed.
func (a *App) Purge(ctx context.Context, guildID int64, channel string) (int, error) {
	if err := a.persistOperation(ctx, guildID, params(map[string]string{"channel": channel})); err != nil {
		return 0, err
	}
	n, err := a.service.Purge(a.Guild(guildID), channel)
	return n, a.op.Fail(err)
}

// ClearCache removes the guild vault's cache directory.
func (a *App) ClearCache(ctx context.Context, guildID int64) error {
	if err := a.persistOperation(ctx, guildID, ""); err != nil {
		return err
	}
	return a.op.Fail(a.service.ClearCache(a.Guild(guildID)))
}

// Status summarizes the guild's vault.
func (a *App) Status(guildID int64) (archive.Stats, error) {
	return a.service.Stats(a.Guild(guildID))
}

// Test entry written by TestExport.
const (
	testAuthor  = "@Test"
	testContent = "This is a test entry."
)

// TestExport appends a marker entry for channel at the current time and
// returns the file it went to, relative to the archive root.
func (a *App) TestExport(ctx context.Context, guildID int64, channel string) (string, error) {
	if err := a.persistOperation(ctx, guildID, params(map[string]string{"channel": channel})); err != nil {
		return "", err
	}
	path, err := a.service.AppendEntry(ctx, a.Guild(guildID), archive.Entry{
		ChannelName: channel,
		MessageID:   0,
		Author:      testAuthor,
		Content:     testContent,
		Timestamp:   a.clock.Now().UTC(),
		Kind:        archive.EventTest,
	})
	if err != nil {
		return "", a.op.Fail(err)
	}
	return a.service.Rel(path), nil
}

// History returns recent operations, newest first. guildID 0 lists all guilds.
func (a *App) History(ctx context.Context, guildID int64, limit int) ([]*archive.Operation, error) {
	return a.history.ListOperations(ctx, guildID, limit)
}

// SetupKeys generates the bundle encryption key pair.
func (a *App) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return errEncryptionDisabled
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	a.logger.Info("encryption keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// OpenBundle decrypts a sealed bundle from r into w.
func (a *App) OpenBundle(passphrase string, r io.Reader, w io.Writer) error {
	if a.encryptor == nil {
		return errEncryptionDisabled
	}
	d, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return err
	}
	return d.Decrypt(r, w)
}

var errEncryptionDisabled = errors.New("encryption is disabled: set [encryption] type in the config file")

// Run connects to Discord and archives live events until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	bot, err := a.newBot()
	if err != nil {
		return err
	}
	a.logger.Info("starting event loop", "archive_root", a.cfg.ArchiveRoot)
	return bot.Run(ctx)
}

// Backfill archives up to limit of a channel's earliest messages and
// returns how many were processed.
func (a *App) Backfill(ctx context.Context, guildID int64, channelID string, limit int) (int, error) {
	if err := a.persistOperation(ctx, guildID, params(map[string]string{
		"channel": channelID,
		"limit":   strconv.Itoa(limit),
	})); err != nil {
		return 0, err
	}
	bot, err := a.newBot()
	if err != nil {
		return 0, a.op.Fail(err)
	}
	n, err := bot.Backfill(ctx, strconv.FormatInt(guildID, 10), channelID, limit)
	return n, a.op.Fail(err)
}

func (a *App) newBot() (*discord.Bot, error) {
	token := os.Getenv(a.cfg.Discord.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("environment variable %s is required", a.cfg.Discord.TokenEnv)
	}
	return discord.NewBot(token, a.cfg.Discord.MessageCacheSize, a.service, a.logger)
}

// Close finishes the operation record, if any, and releases resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.history.FinishOperation(context.Background(), a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}
	if err := a.history.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
