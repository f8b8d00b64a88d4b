package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"axewatch/internal/alerting"
	"axewatch/internal/config"
	"axewatch/internal/discord"
	"axewatch/internal/fetcher"
	"axewatch/internal/monitor"
	"axewatch/internal/scheduler"
	"axewatch/internal/service"
	"axewatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) newFetcher() *fetcher.HTTP {
	return fetcher.NewHTTP(fetcher.Options{
		URL:       a.Config.Bitaxe.APIURL,
		Timeout:   a.Config.Bitaxe.RequestTimeout,
		UserAgent: a.Config.Bitaxe.UserAgent,
	}, a.Logger)
}

func (a *App) newHistory() *storage.FileStore {
	return storage.NewFileStore(a.Config.History.Path)
}

func (a *App) thresholds() monitor.Thresholds {
	return monitor.Thresholds{
		Low:       a.Config.Monitor.LowHashrate,
		Recovered: a.Config.Monitor.RecoveredHashrate,
	}
}

func (a *App) requireDevice() error {
	if strings.TrimSpace(a.Config.Bitaxe.APIURL) == "" {
		return errors.New("bitaxe.api_url not configured")
	}
	return nil
}

// newSession prepares a Discord session without connecting the gateway; REST
// calls work on it right away.
func (a *App) newSession() (*discordgo.Session, error) {
	if !a.Config.DiscordActive() {
		return nil, nil
	}
	session, err := discordgo.New("Bot " + strings.TrimSpace(a.Config.Discord.Token))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent,
	)
	return session, nil
}

func (a *App) newNotifier(session *discordgo.Session) alerting.Notifier {
	var notifiers alerting.Multi
	if session != nil {
		notifiers = append(notifiers, alerting.NewDiscordNotifier(session, a.Config.Discord.ChannelID, a.Logger))
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	if len(notifiers) == 0 {
		a.Logger.Warn().Msg("no chat channel configured; alerts go to the log only")
		return alerting.NewLogNotifier(a.Logger)
	}
	return notifiers
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	if err := a.requireDevice(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session, err := a.newSession()
	if err != nil {
		return err
	}

	device := a.newFetcher()
	history := a.newHistory()
	loc := a.Config.Location()

	var recorder service.Recorder
	if a.Config.Monitor.RecordHistory {
		recorder = history
	}

	svc := service.New(service.Options{
		Fetcher:    device,
		Notifier:   a.newNotifier(session),
		Recorder:   recorder,
		Thresholds: a.thresholds(),
		Location:   loc,
		MonitorScheduler: scheduler.New(scheduler.Options{
			Name:           "monitor",
			Interval:       a.Config.Monitor.Interval,
			RunImmediately: true,
		}, a.Logger),
		ConsoleScheduler: scheduler.New(scheduler.Options{
			Name:         "console",
			Interval:     a.Config.ConsoleInterval(),
			StartupDelay: time.Second,
		}, a.Logger),
	}, a.Logger)

	var bot *discord.Bot
	if session != nil {
		bot = discord.New(discord.Options{
			Messenger:          session,
			Fetcher:            device,
			History:            history,
			Prefix:             a.Config.Discord.CommandPrefix,
			ChannelID:          a.Config.Discord.ChannelID,
			DashboardChannelID: a.Config.Settings.DashboardChannelID,
			DashboardInterval:  a.Config.DashboardInterval(),
			StartupHelp:        a.Config.Discord.StartupHelp,
			Thresholds:         a.thresholds(),
			Location:           loc,
		}, a.Logger)
		session.AddHandler(bot.HandleMessageCreate)

		if err := session.Open(); err != nil {
			return fmt.Errorf("open discord session: %w", err)
		}
		defer session.Close()
		a.Logger.Info().Str("channel_id", a.Config.Discord.ChannelID).Msg("discord bot connected")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	if bot != nil {
		g.Go(func() error { return bot.Run(gctx) })
	}

	a.Logger.Info().Str("device", a.Config.Bitaxe.APIURL).Msg("starting monitoring service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting the best-difficulty history.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// BestOptions configure the best command.
type BestOptions struct {
	Record bool
	Limit  int
}

// SimulateOptions describe a synthetic alert.
type SimulateOptions struct {
	Kind  alerting.Kind
	Value float64
	Pool  string
}
