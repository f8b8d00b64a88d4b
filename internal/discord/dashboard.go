package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"axewatch/internal/difficulty"
	"axewatch/internal/fetcher"
	"axewatch/internal/scheduler"
)

// Dashboard is one live embed that is edited in place.
type Dashboard struct {
	ChannelID string
	MessageID string

	lastBest    float64
	hasLastBest bool
}

// observe remembers the snapshot's best difficulty and reports whether it
// rose numerically since the previous observation.
func (d *Dashboard) observe(snap fetcher.Snapshot) bool {
	if !snap.Reachable {
		return false
	}
	best, ok := difficulty.Parse(string(snap.Info.BestDiff))
	if !ok {
		return false
	}
	rose := d.hasLastBest && best > d.lastBest
	d.lastBest = best
	d.hasLastBest = true
	return rose
}

// StartDashboard posts the initial embed in channelID and optionally pins it.
// A failed pin is logged only.
func (b *Bot) StartDashboard(ctx context.Context, channelID string, pin bool) (*Dashboard, error) {
	snap := b.fetcher.Fetch(ctx)
	d := &Dashboard{ChannelID: channelID}
	d.observe(snap)

	msg, err := b.sendEmbed(ctx, channelID, dashboardEmbed(snap, false, b.thresholds, b.dashboardInterval, b.location))
	if err != nil {
		return nil, fmt.Errorf("post dashboard: %w", err)
	}
	if msg == nil {
		return nil, errors.New("post dashboard: empty response")
	}
	d.MessageID = msg.ID

	if pin {
		if err := b.messenger.ChannelMessagePin(channelID, msg.ID, discordgo.WithContext(ctx)); err != nil {
			b.logger.Warn().Err(err).Str("channel_id", channelID).Msg("dashboard not pinned")
		} else {
			b.logger.Info().Str("channel_id", channelID).Msg("dashboard pinned")
		}
	}
	return d, nil
}

// RefreshDashboard fetches a snapshot and edits the embed.
func (b *Bot) RefreshDashboard(ctx context.Context, d *Dashboard) error {
	snap := b.fetcher.Fetch(ctx)
	highlight := d.observe(snap)
	embed := dashboardEmbed(snap, highlight, b.thresholds, b.dashboardInterval, b.location)
	if _, err := b.messenger.ChannelMessageEditEmbed(d.ChannelID, d.MessageID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("update dashboard: %w", err)
	}
	return nil
}

// spawnDashboard starts a dashboard loop under Run's group.
func (b *Bot) spawnDashboard(channelID string, pin bool) error {
	b.mu.Lock()
	group, ctx := b.group, b.runCtx
	b.mu.Unlock()
	if group == nil {
		return errors.New("bot is not running")
	}

	group.Go(func() error {
		d, err := b.StartDashboard(ctx, channelID, pin)
		if err != nil {
			b.logger.Error().Err(err).Str("channel_id", channelID).Msg("dashboard not started")
			return nil
		}
		sched := scheduler.New(scheduler.Options{
			Name:     "dashboard",
			Interval: b.dashboardInterval,
			Clock:    b.clock,
		}, b.logger)
		return sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
			return b.RefreshDashboard(ctx, d)
		})
	})
	return nil
}
