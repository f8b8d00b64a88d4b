package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"axewatch/internal/alerting"
	"axewatch/internal/difficulty"
	"axewatch/internal/fetcher"
	"axewatch/internal/monitor"
	"axewatch/internal/scheduler"
	"axewatch/internal/storage"
)

// Recorder persists best-difficulty milestones.
type Recorder interface {
	Record(ctx context.Context, value float64, ts time.Time) ([]storage.DifficultyRecord, bool, error)
}

// Options wires the service's collaborators. Recorder may be nil to disable
// history recording from the poller.
type Options struct {
	Fetcher    fetcher.Fetcher
	Notifier   alerting.Notifier
	Recorder   Recorder
	Thresholds monitor.Thresholds
	Location   *time.Location

	MonitorScheduler *scheduler.Scheduler
	ConsoleScheduler *scheduler.Scheduler
}

// Service runs the alert poller and the console status log.
type Service struct {
	fetcher    fetcher.Fetcher
	notifier   alerting.Notifier
	recorder   Recorder
	thresholds monitor.Thresholds
	location   *time.Location

	monitorSched *scheduler.Scheduler
	consoleSched *scheduler.Scheduler

	state  monitor.State
	logger zerolog.Logger
}

// New constructs the monitoring service.
func New(opts Options, logger zerolog.Logger) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = alerting.NewLogNotifier(logger)
	}
	return &Service{
		fetcher:      opts.Fetcher,
		notifier:     notifier,
		recorder:     opts.Recorder,
		thresholds:   opts.Thresholds,
		location:     loc,
		monitorSched: opts.MonitorScheduler,
		consoleSched: opts.ConsoleScheduler,
		logger:       logger.With().Str("component", "service").Logger(),
	}
}

// Run blocks until ctx is cancelled, driving every configured loop.
func (s *Service) Run(ctx context.Context) error {
	if s.monitorSched == nil && s.consoleSched == nil {
		return fmt.Errorf("scheduler not configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.monitorSched != nil {
		g.Go(func() error { return s.monitorSched.Run(gctx, s.MonitorTick) })
	}
	if s.consoleSched != nil {
		g.Go(func() error { return s.consoleSched.Run(gctx, s.ConsoleTick) })
	}
	return g.Wait()
}

// State returns the current alert memory.
func (s *Service) State() monitor.State {
	return s.state
}

// MonitorTick polls the device once, dispatches the resulting alerts, and
// records the best difficulty. Only the scheduler goroutine calls it.
func (s *Service) MonitorTick(ctx context.Context, at time.Time) error {
	if s.fetcher == nil {
		return fmt.Errorf("fetcher not configured")
	}

	snap := s.fetcher.Fetch(ctx)
	next, events := monitor.Step(s.state, snap, s.thresholds)
	s.state = next

	for _, event := range events {
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("kind", string(event.Kind)).Msg("failed to dispatch alert")
			continue
		}
		s.logger.Info().Str("kind", string(event.Kind)).Msg("alert dispatched")
	}

	if snap.Reachable {
		s.record(ctx, snap)
	}
	return nil
}

func (s *Service) record(ctx context.Context, snap fetcher.Snapshot) {
	if s.recorder == nil {
		return
	}
	best, ok := difficulty.Parse(string(snap.Info.BestDiff))
	if !ok {
		return
	}
	_, appended, err := s.recorder.Record(ctx, best, snap.FetchedAt)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to record best difficulty")
		return
	}
	if appended {
		s.logger.Info().Str("best", string(snap.Info.BestDiff)).Msg("best difficulty recorded")
	}
}

// ConsoleTick writes one status line. A hashrate under the alert threshold
// or a hot chip raises the line to warn.
func (s *Service) ConsoleTick(ctx context.Context, at time.Time) error {
	if s.fetcher == nil {
		return fmt.Errorf("fetcher not configured")
	}

	snap := s.fetcher.Fetch(ctx)
	local := at.In(s.location).Format("2006-01-02 15:04:05")
	if !snap.Reachable {
		s.logger.Error().Str("local_time", local).Msg("no connection to the device API")
		return nil
	}

	info := snap.Info
	event := s.logger.Info()
	if hashrateLow(info.HashRate, s.thresholds) || tempHigh(info.Temp) {
		event = s.logger.Warn()
	}
	event.Str("local_time", local).
		Str("temp", info.Temp.String()).
		Str("hashrate", info.HashRate.String()).
		Str("band", hashrateBand(info.HashRate, s.thresholds)).
		Str("uptime", info.Uptime()).
		Str("best_diff", info.BestDiff.String()).
		Str("stratum", orNA(info.StratumURL)).
		Msg("status")
	return nil
}

// HotTemp is the chip temperature (°C) at which the status line warns.
const HotTemp = 60.0

func tempHigh(temp fetcher.Number) bool {
	return temp.Valid && temp.Value >= HotTemp
}

func hashrateLow(rate fetcher.Number, th monitor.Thresholds) bool {
	return !rate.Valid || rate.Value < th.Low
}

func hashrateBand(rate fetcher.Number, th monitor.Thresholds) string {
	switch {
	case !rate.Valid:
		return "unknown"
	case rate.Value >= th.Recovered:
		return "good"
	case rate.Value >= th.Low:
		return "degraded"
	default:
		return "low"
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
