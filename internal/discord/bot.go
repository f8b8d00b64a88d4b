// Package discord is the chat front end: prefix commands, the startup help
// message and the live dashboard embed.
package discord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"axewatch/internal/fetcher"
	"axewatch/internal/monitor"
	"axewatch/internal/scheduler"
	"axewatch/internal/storage"
)

// Messenger is the slice of *discordgo.Session the bot uses.
type Messenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessagePin(channelID, messageID string, options ...discordgo.RequestOption) error
}

// History is the best-difficulty store used by !best.
type History interface {
	Load(ctx context.Context) ([]storage.DifficultyRecord, error)
	Record(ctx context.Context, value float64, ts time.Time) ([]storage.DifficultyRecord, bool, error)
}

// Options configures a Bot.
type Options struct {
	Messenger          Messenger
	Fetcher            fetcher.Fetcher
	History            History
	Prefix             string
	ChannelID          string
	DashboardChannelID string
	DashboardInterval  time.Duration
	StartupHelp        bool
	Thresholds         monitor.Thresholds
	Location           *time.Location
	Clock              scheduler.Clock
}

// Bot answers prefix commands and keeps dashboards current.
type Bot struct {
	messenger          Messenger
	fetcher            fetcher.Fetcher
	history            History
	prefix             string
	channelID          string
	dashboardChannelID string
	dashboardInterval  time.Duration
	startupHelp        bool
	thresholds         monitor.Thresholds
	location           *time.Location
	clock              scheduler.Clock
	logger             zerolog.Logger

	mu     sync.Mutex
	runCtx context.Context
	group  *errgroup.Group
}

// New constructs a Bot.
func New(opts Options, logger zerolog.Logger) *Bot {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "!"
	}
	interval := opts.DashboardInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := opts.Clock
	if clock == nil {
		clock = scheduler.RealClock
	}
	return &Bot{
		messenger:          opts.Messenger,
		fetcher:            opts.Fetcher,
		history:            opts.History,
		prefix:             prefix,
		channelID:          strings.TrimSpace(opts.ChannelID),
		dashboardChannelID: strings.TrimSpace(opts.DashboardChannelID),
		dashboardInterval:  interval,
		startupHelp:        opts.StartupHelp,
		thresholds:         opts.Thresholds,
		location:           loc,
		clock:              clock,
		logger:             logger.With().Str("component", "discord_bot").Logger(),
	}
}

// Run posts the startup help, starts the configured dashboard and blocks
// until ctx is cancelled and every dashboard has stopped.
func (b *Bot) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	b.mu.Lock()
	b.runCtx = gctx
	b.group = group
	b.mu.Unlock()

	if b.startupHelp && b.channelID != "" {
		if err := b.send(gctx, b.channelID, HelpText(true, b.prefix)); err != nil {
			b.logger.Warn().Err(err).Msg("startup help not sent")
		}
	}

	if b.dashboardChannelID != "" {
		if err := b.spawnDashboard(b.dashboardChannelID, true); err != nil {
			b.logger.Warn().Err(err).Msg("dashboard not started")
		}
	}

	<-gctx.Done()
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleMessageCreate is registered with discordgo.Session.AddHandler.
func (b *Bot) HandleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if s != nil && s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	ctx := b.context()
	if err := b.Dispatch(ctx, m.ChannelID, m.Content); err != nil {
		b.logger.Error().Err(err).Str("channel_id", m.ChannelID).Msg("command failed")
	}
}

// Dispatch runs the command in content, if any. Unknown commands are ignored.
func (b *Bot) Dispatch(ctx context.Context, channelID, content string) error {
	name, ok := b.parse(content)
	if !ok {
		return nil
	}
	cmd, ok := lookup(name)
	if !ok {
		b.logger.Debug().Str("command", name).Msg("unknown command")
		return nil
	}

	b.logger.Debug().Str("command", name).Str("channel_id", channelID).Msg("command received")
	return cmd.run(ctx, b, channelID)
}

func (b *Bot) parse(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, b.prefix) {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(content, b.prefix))
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

func (b *Bot) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runCtx != nil {
		return b.runCtx
	}
	return context.Background()
}

func (b *Bot) send(ctx context.Context, channelID, content string) error {
	_, err := b.messenger.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

func (b *Bot) sendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return b.messenger.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
}
