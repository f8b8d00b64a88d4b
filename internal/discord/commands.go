package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"axewatch/internal/difficulty"
	"axewatch/internal/fetcher"
	"axewatch/internal/storage"
)

// UnreachableReply is sent when a command cannot get a snapshot.
const UnreachableReply = "❌ Error: no valid response from the Bitaxe API."

type command struct {
	name string
	help string
	run  func(ctx context.Context, b *Bot, channelID string) error
}

// category groups commands in the help text.
type category struct {
	title string
	names []string
}

var categories = []category{
	{"🟢 Status", []string{"status", "hashrate", "temp", "uptime"}},
	{"🔧 System", []string{"chip", "power", "fans", "version"}},
	{"🌐 Network", []string{"wifi"}},
	{"📋 Overview", []string{"info", "best", "stratum", "dashboard"}},
}

var commands []command

func init() {
	commands = []command{
		{"status", "Shows the current status: temperature, hashrate, uptime, shares and free memory", textCommand(statusText)},
		{"hashrate", "Shows the current hashrate in MH/s", textCommand(hashrateText)},
		{"temp", "Shows the chip and VRM temperature", textCommand(tempText)},
		{"uptime", "Shows the miner's uptime", textCommand(uptimeText)},
		{"chip", "Shows the ASIC model, frequency and core voltage (actual/target)", embedCommand(chipEmbed)},
		{"power", "Shows power draw, voltage and current with the min/max power range", embedCommand(powerEmbed)},
		{"fans", "Shows fan speed, RPM and auto-fan state", textCommand(fansText)},
		{"wifi", "Shows WiFi status, SSID and IP address", textCommand(wifiText)},
		{"version", "Shows firmware version, partition and last reset reason", textCommand(versionText)},
		{"stratum", "Shows the primary and fallback stratum settings", textCommand(stratumText)},
		{"best", "Shows the best difficulty, the session best and the history of best difficulties (highest first)", runBest},
		{"info", "Shows a compact summary of the key values", textCommand(infoText)},
		{"help", "Lists every command by category", runHelp},
		{"dashboard", "Posts a live dashboard embed that refreshes continuously", runDashboard},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// textCommand adapts a renderer that needs a reachable snapshot.
func textCommand(render func(b *Bot, info fetcher.SystemInfo) string) func(context.Context, *Bot, string) error {
	return func(ctx context.Context, b *Bot, channelID string) error {
		snap := b.fetcher.Fetch(ctx)
		if !snap.Reachable {
			return b.send(ctx, channelID, UnreachableReply)
		}
		return b.send(ctx, channelID, render(b, snap.Info))
	}
}

func embedCommand(render func(b *Bot, info fetcher.SystemInfo, at time.Time) *discordgo.MessageEmbed) func(context.Context, *Bot, string) error {
	return func(ctx context.Context, b *Bot, channelID string) error {
		snap := b.fetcher.Fetch(ctx)
		if !snap.Reachable {
			return b.send(ctx, channelID, UnreachableReply)
		}
		_, err := b.sendEmbed(ctx, channelID, render(b, snap.Info, snap.FetchedAt))
		return err
	}
}

func runHelp(ctx context.Context, b *Bot, channelID string) error {
	return b.send(ctx, channelID, HelpText(false, b.prefix))
}

// HelpText lists the commands by category. The startup variant greets and
// highlights the dashboard command.
func HelpText(startup bool, prefix string) string {
	var sb strings.Builder
	if startup {
		sb.WriteString("🤖 **axewatch is online!** 🎉\n")
		sb.WriteString("Here are your most important commands, ready to use!\n\n")
		sb.WriteString("📌 **Top command:**\n")
		fmt.Fprintf(&sb, "  🔹 `%sdashboard` – a live embed with temperature, hashrate, uptime, best difficulty, stratum, chip voltage and current\n\n", prefix)
		sb.WriteString("📘 **More categories:**\n\n")
	} else {
		sb.WriteString("📘 **Help – available commands:**\n\n")
	}
	for _, cat := range categories {
		sb.WriteString(cat.title + ":\n")
		for _, name := range cat.names {
			if cmd, ok := lookup(name); ok {
				fmt.Fprintf(&sb, "  🔹 `%s%s` – %s\n", prefix, cmd.name, cmd.help)
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func runBest(ctx context.Context, b *Bot, channelID string) error {
	snap := b.fetcher.Fetch(ctx)
	if !snap.Reachable {
		return b.send(ctx, channelID, UnreachableReply)
	}
	if b.history == nil {
		return b.send(ctx, channelID, bestText(snap.Info, nil, b.location))
	}

	var (
		history []storage.DifficultyRecord
		err     error
	)
	if value, ok := difficulty.Parse(string(snap.Info.BestDiff)); ok {
		history, _, err = b.history.Record(ctx, value, b.clock.Now())
	} else {
		history, err = b.history.Load(ctx)
	}
	if err != nil {
		b.logger.Error().Err(err).Msg("best difficulty history unavailable")
		return b.send(ctx, channelID, "❌ Error: the best difficulty history could not be read.")
	}
	return b.send(ctx, channelID, bestText(snap.Info, history, b.location))
}

func runDashboard(ctx context.Context, b *Bot, channelID string) error {
	if err := b.spawnDashboard(channelID, false); err != nil {
		return b.send(ctx, channelID, "❌ Error: the dashboard could not be started.")
	}
	return nil
}
