package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"axewatch/internal/difficulty"
	"axewatch/internal/fetcher"
	"axewatch/internal/monitor"
	"axewatch/internal/storage"
)

const (
	embedColor = 0x3498db
	// maxMessageLen stays under Discord's 2000 character limit.
	maxMessageLen = 1900
)

func tempIcon(t fetcher.Number) string {
	switch {
	case !t.Valid:
		return "❓"
	case t.Value >= 60:
		return "🔴"
	case t.Value >= 55:
		return "🟡"
	default:
		return "🟢"
	}
}

func hashrateIcon(hr fetcher.Number, th monitor.Thresholds) string {
	switch {
	case !hr.Valid:
		return "❓"
	case hr.Value >= th.Recovered:
		return "🟢"
	case hr.Value >= th.Low:
		return "🟡"
	default:
		return "🔴"
	}
}

func rpmIcon(rpm fetcher.Number) string {
	switch {
	case !rpm.Valid:
		return "❓"
	case rpm.Value >= 5000:
		return "🟢"
	case rpm.Value >= 3000:
		return "🟡"
	default:
		return "🔴"
	}
}

func fanIcon(speed fetcher.Number) string {
	switch {
	case !speed.Valid:
		return "❓"
	case speed.Value >= 80:
		return "🟢"
	case speed.Value >= 50:
		return "🟡"
	default:
		return "🔴"
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func statusText(b *Bot, info fetcher.SystemInfo) string {
	return fmt.Sprintf("🟢 **Bitaxe Status**\n\n"+
		"🌡️ Temperature: %s %s°C\n"+
		"⚡ Hashrate: %s %s MH/s\n"+
		"⏱️ Uptime: %s\n"+
		"📈 Shares: ✅ %s / ❌ %s\n"+
		"💾 Free heap: %s bytes",
		tempIcon(info.Temp), info.Temp,
		hashrateIcon(info.HashRate, b.thresholds), info.HashRate.Fixed(2),
		info.Uptime(),
		info.SharesAccepted, info.SharesRejected,
		info.FreeHeap,
	)
}

func hashrateText(b *Bot, info fetcher.SystemInfo) string {
	icon := "🔴"
	if info.HashRate.Valid && info.HashRate.Value >= b.thresholds.Recovered {
		icon = "🟢"
	}
	return fmt.Sprintf("%s Current hashrate: %s MH/s", icon, info.HashRate.Fixed(2))
}

func tempText(_ *Bot, info fetcher.SystemInfo) string {
	return fmt.Sprintf("🌡️ Temperature: %s°C | VRM: %s°C", info.Temp, info.VRTemp)
}

func uptimeText(_ *Bot, info fetcher.SystemInfo) string {
	return "⏱️ Uptime: " + info.Uptime()
}

func fansText(_ *Bot, info fetcher.SystemInfo) string {
	auto := "❌ Auto fan disabled"
	if info.AutoFanSpeed {
		auto = "✅ Auto fan enabled"
	}
	return fmt.Sprintf("🌀 Fan: %s %s%% (%s %s RPM)\n%s",
		fanIcon(info.FanSpeed), info.FanSpeed,
		rpmIcon(info.FanRPM), info.FanRPM,
		auto,
	)
}

func wifiText(_ *Bot, info fetcher.SystemInfo) string {
	return fmt.Sprintf("📡 WiFi: %s | IP: %s | Status: %s", orNA(info.SSID), orNA(info.HostIP), orNA(info.WifiStatus))
}

func versionText(_ *Bot, info fetcher.SystemInfo) string {
	return fmt.Sprintf("🧱 Firmware: %s | Partition: %s\n🔁 Last reset: %s",
		orNA(info.Version), orNA(info.RunningPartition), orNA(info.LastResetReason))
}

func stratumText(_ *Bot, info fetcher.SystemInfo) string {
	active, fallback := "Primary stratum", "❌ Not active"
	if info.IsUsingFallbackStratum {
		active, fallback = "Fallback stratum", "✅ Active"
	}
	return fmt.Sprintf("🌐 **Stratum info:**\n"+
		"• Active stratum: %s\n\n"+
		"🔹 **Primary stratum:**\n"+
		"• URL: `%s`\n• Port: `%s`\n• User: `%s`\n\n"+
		"🔄 **Fallback stratum:**\n"+
		"• URL: `%s`\n• Port: `%s`\n• User: `%s`\n"+
		"• Fallback active: %s",
		active,
		orNA(info.StratumURL), info.StratumPort, orNA(info.StratumUser),
		orNA(info.FallbackStratumURL), info.FallbackStratumPort, orNA(info.FallbackStratumUser),
		fallback,
	)
}

func infoText(b *Bot, info fetcher.SystemInfo) string {
	title := "📄 **Info**"
	if info.Hostname != "" {
		title = fmt.Sprintf("📄 **Info %s**", info.Hostname)
	}
	return fmt.Sprintf("%s\n"+
		"Model: %s (%s)\n"+
		"Temp: %s %s°C | HR: %s %s MH/s\n"+
		"Fan: %s %s RPM\n"+
		"IP: %s | WiFi: %s\n"+
		"Uptime: %s",
		title,
		orNA(info.DeviceModel), orNA(info.ASICModel),
		tempIcon(info.Temp), info.Temp, hashrateIcon(info.HashRate, b.thresholds), info.HashRate.Fixed(2),
		rpmIcon(info.FanRPM), info.FanRPM,
		orNA(info.HostIP), orNA(info.SSID),
		info.Uptime(),
	)
}

// bestText lists the history ranked by value. Lines that would push the
// message past Discord's limit are dropped.
func bestText(info fetcher.SystemInfo, history []storage.DifficultyRecord, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Best difficulty: %s (session: %s)\n\n", info.BestDiff, info.BestSessionDiff)
	sb.WriteString("📜 Best difficulty history (highest first):")

	ranked := storage.RankDescending(history)
	for i, rec := range ranked {
		line := "\n" + historyLine(rec, loc)
		if sb.Len()+len(line) > maxMessageLen {
			fmt.Fprintf(&sb, "\n… %d more", len(ranked)-i)
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func historyLine(rec storage.DifficultyRecord, loc *time.Location) string {
	ts := rec.RawTimestamp
	if !rec.Timestamp.IsZero() {
		ts = rec.Timestamp.In(loc).Format("2006-01-02 15:04:05")
	}
	if ts == "" {
		ts = "unknown"
	}
	if !rec.Valid {
		return ts + " - N/A"
	}
	full, abbr := difficulty.Format(rec.Best)
	return fmt.Sprintf("%s - %s (%s)", ts, full, abbr)
}

func chipEmbed(_ *Bot, info fetcher.SystemInfo, at time.Time) *discordgo.MessageEmbed {
	voltage := fmt.Sprintf("Actual: %s V | Target: %s V",
		info.CoreVoltageActual.Scaled(1000, 2), info.CoreVoltage.Scaled(1000, 2))
	return &discordgo.MessageEmbed{
		Title:     "🔎 Chip information",
		Color:     embedColor,
		Timestamp: at.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Model", Value: orNA(info.ASICModel), Inline: true},
			{Name: "Frequency", Value: fmt.Sprintf("%s MHz", info.Frequency), Inline: true},
			{Name: "Voltage", Value: voltage},
		},
	}
}

func powerEmbed(_ *Bot, info fetcher.SystemInfo, at time.Time) *discordgo.MessageEmbed {
	power := info.Power.Fixed(2) + " W"
	if info.Power.Valid && info.MinPower.Valid && info.MaxPower.Valid {
		power = fmt.Sprintf("%s W (%s - %s W)", info.Power.Fixed(2), info.MinPower.Fixed(2), info.MaxPower.Fixed(2))
	}
	return &discordgo.MessageEmbed{
		Title:     "🔌 Power information",
		Color:     embedColor,
		Timestamp: at.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Power", Value: power},
			{Name: "Voltage", Value: info.Voltage.Scaled(1000, 2) + " V", Inline: true},
			{Name: "Current", Value: info.Current.Scaled(1000, 2) + " A", Inline: true},
		},
	}
}

// dashboardEmbed renders the live dashboard. highlight marks a best
// difficulty that rose since the previous refresh.
func dashboardEmbed(snap fetcher.Snapshot, highlight bool, th monitor.Thresholds, interval time.Duration, loc *time.Location) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "🚀 Live Dashboard",
		Color:     embedColor,
		Timestamp: snap.FetchedAt.In(loc).Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Dashboard refreshes every %d seconds", int(interval.Seconds())),
		},
	}
	if !snap.Reachable {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Status", Value: "🚫 No connection to the Bitaxe API."},
		}
		return embed
	}

	info := snap.Info
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Temperature", Value: dashTemp(info.Temp), Inline: true},
		{Name: "Hashrate", Value: dashHashrate(info.HashRate, th), Inline: true},
		{Name: "Uptime", Value: "⌛ " + info.Uptime(), Inline: true},
		{Name: "Best Difficulty", Value: dashBest(info.BestDiff, highlight), Inline: true},
		{Name: "Stratum", Value: dashStratum(info.StratumURL), Inline: true},
		{Name: "Chip Voltage", Value: dashVoltage(info.CoreVoltageActual), Inline: true},
		{Name: "Current", Value: dashCurrent(info.Current), Inline: true},
	}
	return embed
}

func dashTemp(t fetcher.Number) string {
	switch {
	case !t.Valid:
		return "🌡 N/A °C"
	case t.Value >= 60:
		return "🔥 " + t.Fixed(1) + " °C"
	case t.Value >= 55:
		return "⚠️ " + t.Fixed(1) + " °C"
	default:
		return "❄️ " + t.Fixed(1) + " °C"
	}
}

func dashHashrate(hr fetcher.Number, th monitor.Thresholds) string {
	switch {
	case !hr.Valid:
		return "💪 N/A MH/s"
	case hr.Value >= th.Recovered:
		return "💪 " + hr.Fixed(2) + " MH/s"
	case hr.Value >= th.Low:
		return "⚡ " + hr.Fixed(2) + " MH/s"
	default:
		return "🔥 " + hr.Fixed(2) + " MH/s"
	}
}

func dashBest(best fetcher.Magnitude, highlight bool) string {
	if highlight {
		return "✨🏆 " + best.String()
	}
	return "🏆 " + best.String()
}

func dashStratum(url string) string {
	if url == "" || url == "N/A" {
		return "🚫 N/A"
	}
	if strings.Contains(strings.ToLower(url), "pool") {
		return "🏦 " + url
	}
	return "🌐 " + url
}

func dashVoltage(mv fetcher.Number) string {
	if !mv.Valid {
		return "🔌 N/A"
	}
	v := mv.Value / 1000
	switch {
	case v < 1.20:
		return "🔻 " + mv.Scaled(1000, 2) + " V"
	case v <= 1.30:
		return "✅ " + mv.Scaled(1000, 2) + " V"
	default:
		return "🔺 " + mv.Scaled(1000, 2) + " V"
	}
}

func dashCurrent(ma fetcher.Number) string {
	if !ma.Valid {
		return "🔋 N/A"
	}
	a := ma.Value / 1000
	switch {
	case a >= 1.5:
		return "⚡ " + ma.Scaled(1000, 2) + " A"
	case a >= 1.0:
		return "🔋 " + ma.Scaled(1000, 2) + " A"
	default:
		return "💡 " + ma.Scaled(1000, 2) + " A"
	}
}
