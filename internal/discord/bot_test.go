package discord

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"axewatch/internal/fetcher"
	"axewatch/internal/monitor"
	"axewatch/internal/storage"
)

type sentMessage struct {
	channelID string
	content   string
}

type fakeMessenger struct {
	sent   []sentMessage
	embeds []*discordgo.MessageEmbed
	edits  []*discordgo.MessageEmbed
	pins   []string
	pinErr error
}

func (f *fakeMessenger) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: "m1", ChannelID: channelID, Content: content}, nil
}

func (f *fakeMessenger) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{ID: "dash-1", ChannelID: channelID}, nil
}

func (f *fakeMessenger) ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, embed)
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeMessenger) ChannelMessagePin(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.pins = append(f.pins, channelID+"/"+messageID)
	return f.pinErr
}

func (f *fakeMessenger) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].content
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

var testNow = time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)

func sampleInfo() fetcher.SystemInfo {
	return fetcher.SystemInfo{
		Temp:                   fetcher.Num(56.7),
		VRTemp:                 fetcher.Num(48),
		HashRate:               fetcher.Num(375.32),
		UptimeSeconds:          fetcher.Num(123456),
		BestDiff:               "568M",
		BestSessionDiff:        "12.3K",
		SharesAccepted:         fetcher.Num(1024),
		SharesRejected:         fetcher.Num(3),
		FreeHeap:               fetcher.Num(150000),
		Power:                  fetcher.Num(14.5),
		MinPower:               fetcher.Num(10),
		MaxPower:               fetcher.Num(20),
		Voltage:                fetcher.Num(5100),
		Current:                fetcher.Num(1500),
		CoreVoltage:            fetcher.Num(1200),
		CoreVoltageActual:      fetcher.Num(1198),
		Frequency:              fetcher.Num(525),
		FanSpeed:               fetcher.Num(65),
		FanRPM:                 fetcher.Num(5200),
		AutoFanSpeed:           true,
		ASICModel:              "BM1370",
		DeviceModel:            "Gamma",
		Hostname:               "bitaxe",
		HostIP:                 "192.168.1.50",
		SSID:                   "home",
		WifiStatus:             "Connected!",
		Version:                "v2.6.0",
		RunningPartition:       "ota_0",
		LastResetReason:        "Power on reset",
		StratumURL:             "solo.example.com",
		StratumPort:            fetcher.Num(3333),
		StratumUser:            "bc1q.worker",
		FallbackStratumURL:     "backup.example.com",
		FallbackStratumPort:    fetcher.Num(4444),
		FallbackStratumUser:    "bc1q.backup",
		IsUsingFallbackStratum: true,
	}
}

func newTestBot(m *fakeMessenger, f fetcher.Fetcher, history History) *Bot {
	return New(Options{
		Messenger:         m,
		Fetcher:           f,
		History:           history,
		ChannelID:         "general",
		DashboardInterval: 30 * time.Second,
		Thresholds:        monitor.DefaultThresholds(),
		Location:          time.UTC,
		Clock:             fixedClock{now: testNow},
	}, zerolog.Nop())
}

func constant(snap fetcher.Snapshot) fetcher.Fetcher {
	return fetcher.FetchFunc(func(context.Context) fetcher.Snapshot { return snap })
}

func sequence(snaps ...fetcher.Snapshot) fetcher.Fetcher {
	i := 0
	return fetcher.FetchFunc(func(context.Context) fetcher.Snapshot {
		snap := snaps[i]
		if i < len(snaps)-1 {
			i++
		}
		return snap
	})
}

func TestTextCommands(t *testing.T) {
	cases := []struct {
		command string
		want    []string
	}{
		{"!status", []string{"🟢 **Bitaxe Status**", "🟡 56.7°C", "🟡 375.32 MH/s", "1 day 10 hours 17 minutes", "✅ 1024 / ❌ 3", "150000 bytes"}},
		{"!hashrate", []string{"🔴 Current hashrate: 375.32 MH/s"}},
		{"!temp", []string{"Temperature: 56.7°C | VRM: 48°C"}},
		{"!uptime", []string{"⏱️ Uptime: 1 day 10 hours 17 minutes"}},
		{"!fans", []string{"🟡 65% (🟢 5200 RPM)", "✅ Auto fan enabled"}},
		{"!wifi", []string{"WiFi: home | IP: 192.168.1.50 | Status: Connected!"}},
		{"!version", []string{"Firmware: v2.6.0 | Partition: ota_0", "Last reset: Power on reset"}},
		{"!stratum", []string{"Active stratum: Fallback stratum", "`solo.example.com`", "`4444`", "Fallback active: ✅ Active"}},
		{"!info", []string{"**Info bitaxe**", "Model: Gamma (BM1370)", "Fan: 🟢 5200 RPM"}},
		{"!help", []string{"📘 **Help", "`!dashboard`", "`!best`", "🌐 Network:"}},
		{"  !STATUS extra args", []string{"Bitaxe Status"}},
	}

	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			m := &fakeMessenger{}
			bot := newTestBot(m, constant(fetcher.Present(sampleInfo(), testNow)), nil)

			if err := bot.Dispatch(context.Background(), "chan", tc.command); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if len(m.sent) != 1 || m.sent[0].channelID != "chan" {
				t.Fatalf("expected one reply in chan, got %+v", m.sent)
			}
			for _, fragment := range tc.want {
				if !strings.Contains(m.last(), fragment) {
					t.Fatalf("reply %q missing %q", m.last(), fragment)
				}
			}
		})
	}
}

func TestEmbedCommands(t *testing.T) {
	m := &fakeMessenger{}
	bot := newTestBot(m, constant(fetcher.Present(sampleInfo(), testNow)), nil)

	for _, cmd := range []string{"!chip", "!power"} {
		if err := bot.Dispatch(context.Background(), "chan", cmd); err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
	}
	if len(m.embeds) != 2 {
		t.Fatalf("expected two embeds, got %d", len(m.embeds))
	}

	chip := m.embeds[0]
	if chip.Fields[1].Value != "525 MHz" || chip.Fields[2].Value != "Actual: 1.20 V | Target: 1.20 V" {
		t.Fatalf("chip fields: %+v %+v", chip.Fields[1], chip.Fields[2])
	}
	power := m.embeds[1]
	if power.Fields[0].Value != "14.50 W (10.00 - 20.00 W)" {
		t.Fatalf("power field: %q", power.Fields[0].Value)
	}
	if power.Fields[1].Value != "5.10 V" || power.Fields[2].Value != "1.50 A" {
		t.Fatalf("power fields: %q %q", power.Fields[1].Value, power.Fields[2].Value)
	}
}

func TestUnreachableReply(t *testing.T) {
	for _, cmd := range []string{"!status", "!chip", "!best", "!stratum"} {
		m := &fakeMessenger{}
		bot := newTestBot(m, constant(fetcher.Unreachable(testNow)), nil)
		if err := bot.Dispatch(context.Background(), "chan", cmd); err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
		if m.last() != UnreachableReply {
			t.Fatalf("%s replied %q", cmd, m.last())
		}
	}
}

func TestIgnoresNonCommands(t *testing.T) {
	m := &fakeMessenger{}
	bot := newTestBot(m, constant(fetcher.Present(sampleInfo(), testNow)), nil)

	for _, content := range []string{"hello", "!", "!nope", "?status"} {
		if err := bot.Dispatch(context.Background(), "chan", content); err != nil {
			t.Fatalf("%q: %v", content, err)
		}
	}
	if len(m.sent) != 0 || len(m.embeds) != 0 {
		t.Fatalf("unexpected replies: %+v", m.sent)
	}
}

func TestBestRecordsAndRanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	seed := `[{"timestamp":"2025-01-01T10:00:00Z","best":1000000},{"timestamp":"2025-01-02T10:00:00Z","best":"oops"}]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	store := storage.NewFileStore(path)

	m := &fakeMessenger{}
	bot := newTestBot(m, constant(fetcher.Present(sampleInfo(), testNow)), store)
	if err := bot.Dispatch(context.Background(), "chan", "!best"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	reply := m.last()
	if !strings.HasPrefix(reply, "🏆 Best difficulty: 568M (session: 12.3K)") {
		t.Fatalf("reply header: %q", reply)
	}
	top := strings.Index(reply, "2025-04-02 08:30:00 - 568,000,000 (568.00M)")
	second := strings.Index(reply, "2025-01-01 10:00:00 - 1,000,000 (1.00M)")
	invalid := strings.Index(reply, "2025-01-02 10:00:00 - N/A")
	if top < 0 || second < 0 || invalid < 0 || !(top < second && second < invalid) {
		t.Fatalf("history not ranked: %q", reply)
	}

	history, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(history) != 3 || history[2].Best != 568e6 {
		t.Fatalf("history = %+v", history)
	}

	// A second !best with the same value does not grow the file.
	if err := bot.Dispatch(context.Background(), "chan", "!best"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	history, _ = store.Load(context.Background())
	if len(history) != 3 {
		t.Fatalf("duplicate appended: %d records", len(history))
	}
}

func TestBestCorruptHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte(`{"not":"a list"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &fakeMessenger{}
	bot := newTestBot(m, constant(fetcher.Present(sampleInfo(), testNow)), storage.NewFileStore(path))
	if err := bot.Dispatch(context.Background(), "chan", "!best"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.HasPrefix(m.last(), "❌") {
		t.Fatalf("expected failure reply, got %q", m.last())
	}
}

func TestBestTextTruncates(t *testing.T) {
	history := make([]storage.DifficultyRecord, 0, 200)
	for i := 0; i < 200; i++ {
		history = append(history, storage.NewRecord(float64(1000+i), testNow.Add(time.Duration(i)*time.Minute)))
	}
	text := bestText(sampleInfo(), history, time.UTC)
	if len(text) > 2000 {
		t.Fatalf("message too long: %d", len(text))
	}
	if !strings.Contains(text, "more") {
		t.Fatal("expected truncation marker")
	}
}

func TestDashboardHighlightsRisingBest(t *testing.T) {
	info := sampleInfo()
	higher := sampleInfo()
	higher.BestDiff = "1.2G"
	unparseable := sampleInfo()
	unparseable.BestDiff = ""

	m := &fakeMessenger{pinErr: errors.New("missing permissions")}
	bot := newTestBot(m, sequence(
		fetcher.Present(info, testNow),
		fetcher.Present(info, testNow.Add(30*time.Second)),
		fetcher.Present(higher, testNow.Add(time.Minute)),
		fetcher.Unreachable(testNow.Add(90*time.Second)),
		fetcher.Present(unparseable, testNow.Add(2*time.Minute)),
		fetcher.Present(higher, testNow.Add(150*time.Second)),
	), nil)

	ctx := context.Background()
	d, err := bot.StartDashboard(ctx, "dash", true)
	if err != nil {
		t.Fatalf("start dashboard: %v", err)
	}
	if d.MessageID != "dash-1" || len(m.pins) != 1 {
		t.Fatalf("dashboard not posted and pinned: %+v %v", d, m.pins)
	}
	if got := m.embeds[0].Footer.Text; got != "Dashboard refreshes every 30 seconds" {
		t.Fatalf("footer = %q", got)
	}

	for i := 0; i < 5; i++ {
		if err := bot.RefreshDashboard(ctx, d); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}

	bestField := func(e *discordgo.MessageEmbed) string {
		for _, f := range e.Fields {
			if f.Name == "Best Difficulty" {
				return f.Value
			}
		}
		return ""
	}
	if got := bestField(m.edits[0]); got != "🏆 568M" {
		t.Fatalf("unchanged best = %q", got)
	}
	if got := bestField(m.edits[1]); got != "✨🏆 1.2G" {
		t.Fatalf("risen best = %q", got)
	}
	if m.edits[2].Fields[0].Name != "Status" {
		t.Fatalf("unreachable embed fields = %+v", m.edits[2].Fields)
	}
	if got := bestField(m.edits[4]); got != "🏆 1.2G" {
		t.Fatalf("best after outage = %q", got)
	}
}

func TestDashboardCommandRequiresRunningBot(t *testing.T) {
	m := &fakeMessenger{}
	bot := newTestBot(m, constant(fetcher.Present(sampleInfo(), testNow)), nil)
	if err := bot.Dispatch(context.Background(), "chan", "!dashboard"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.HasPrefix(m.last(), "❌") {
		t.Fatalf("expected failure reply, got %q", m.last())
	}
}

func TestRunPostsStartupHelp(t *testing.T) {
	m := &fakeMessenger{}
	bot := New(Options{
		Messenger:   m,
		Fetcher:     constant(fetcher.Present(sampleInfo(), testNow)),
		ChannelID:   "general",
		StartupHelp: true,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bot.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].channelID != "general" {
		t.Fatalf("startup help not sent: %+v", m.sent)
	}
	if !strings.Contains(m.sent[0].content, "axewatch is online") {
		t.Fatalf("startup help = %q", m.sent[0].content)
	}
}
