package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"axewatch/internal/alerting"
	"axewatch/internal/config"
	"axewatch/internal/storage"
)

const devicePayload = `{
	"temp": 56.7,
	"hashRate": 375.32,
	"uptimeSeconds": 3600,
	"bestDiff": "2M",
	"bestSessionDiff": "1.5M",
	"stratumURL": "solo.example.com",
	"stratumPort": 3333,
	"isUsingFallbackStratum": 0,
	"ASICModel": "BM1370",
	"deviceModel": "Gamma",
	"version": "v2.6.0"
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Bitaxe:   config.BitaxeConfig{RequestTimeout: time.Second},
		Monitor:  config.MonitorConfig{Interval: time.Minute, LowHashrate: 350, RecoveredHashrate: 400},
		Settings: config.SettingsConfig{ConsoleIntervalSec: 30, DashboardInterval: 30, Timezone: "UTC"},
		History:  config.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.json")},
		Export:   config.ExportConfig{MaxDataPoints: 100},
	}
}

func newTestApp(cfg *config.Config) (*App, *bytes.Buffer) {
	var buf bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &buf
	return a, &buf
}

func deviceServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeHistory(t *testing.T, path string, records ...storage.DifficultyRecord) {
	t.Helper()
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal history: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write history: %v", err)
	}
}

func TestStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bitaxe.APIURL = deviceServer(t, http.StatusOK, devicePayload).URL
	a, out := newTestApp(cfg)

	if err := a.Status(context.Background()); err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Gamma (BM1370)", "375.32 MH/s", "56.7 °C", "solo.example.com:3333", "1 hour"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("status output missing %q:\n%s", want, out.String())
		}
	}
}

func TestStatusUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bitaxe.APIURL = deviceServer(t, http.StatusInternalServerError, "").URL
	a, _ := newTestApp(cfg)

	if err := a.Status(context.Background()); !errors.Is(err, ErrDeviceUnreachable) {
		t.Fatalf("expected ErrDeviceUnreachable, got %v", err)
	}
}

func TestStatusRequiresURL(t *testing.T) {
	a, _ := newTestApp(testConfig(t))
	if err := a.Status(context.Background()); err == nil {
		t.Fatal("expected error without bitaxe.api_url")
	}
}

func TestBestListsRankedHistory(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	writeHistory(t, cfg.History.Path,
		storage.NewRecord(1500, base),
		storage.NewRecord(2_500_000, base.Add(time.Hour)),
		storage.NewRecord(40_000, base.Add(2*time.Hour)),
	)
	a, out := newTestApp(cfg)

	if err := a.Best(context.Background(), BestOptions{}); err != nil {
		t.Fatalf("best: %v", err)
	}

	text := out.String()
	first := strings.Index(text, "2,500,000")
	second := strings.Index(text, "40,000")
	third := strings.Index(text, "1,500")
	if first < 0 || second < 0 || third < 0 || !(first < second && second < third) {
		t.Fatalf("history not ranked:\n%s", text)
	}
	if !strings.Contains(text, "2025-01-01 01:00:00") || !strings.Contains(text, "2.50M") {
		t.Fatalf("missing formatted columns:\n%s", text)
	}
}

func TestBestLimit(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	writeHistory(t, cfg.History.Path,
		storage.NewRecord(1, base),
		storage.NewRecord(2, base.Add(time.Hour)),
		storage.NewRecord(3, base.Add(2*time.Hour)),
	)
	a, out := newTestApp(cfg)

	if err := a.Best(context.Background(), BestOptions{Limit: 1}); err != nil {
		t.Fatalf("best: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %q", lines)
	}
}

func TestBestRecordsCurrentValue(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bitaxe.APIURL = deviceServer(t, http.StatusOK, devicePayload).URL
	a, out := newTestApp(cfg)

	for i := 0; i < 2; i++ {
		if err := a.Best(context.Background(), BestOptions{Record: true}); err != nil {
			t.Fatalf("best: %v", err)
		}
	}

	history, err := storage.NewFileStore(cfg.History.Path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(history) != 1 || history[0].Best != 2e6 {
		t.Fatalf("history = %+v", history)
	}
	if !strings.Contains(out.String(), "2,000,000") {
		t.Fatalf("output missing recorded value:\n%s", out.String())
	}
}

func TestBestCorruptHistory(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.History.Path, []byte(`"nope"`), 0o644); err != nil {
		t.Fatal(err)
	}
	a, _ := newTestApp(cfg)

	if err := a.Best(context.Background(), BestOptions{}); !errors.Is(err, storage.ErrCorruptHistory) {
		t.Fatalf("expected ErrCorruptHistory, got %v", err)
	}
}

func TestExport(t *testing.T) {
	cfg := testConfig(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	writeHistory(t, cfg.History.Path,
		storage.NewRecord(1_000_000, base),
		storage.NewRecord(5_000_000, base.Add(24*time.Hour)),
		storage.NewRecord(12_000_000, base.Add(48*time.Hour)),
	)
	a, _ := newTestApp(cfg)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "history.csv")
	pngPath := filepath.Join(dir, "out", "history.png")
	if err := a.Export(context.Background(), ExportOptions{CSVPath: csvPath, PNGPath: pngPath}); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 || lines[0] != "timestamp,best,best_short" {
		t.Fatalf("csv = %q", lines)
	}
	if lines[2] != "2025-01-02T00:00:00Z,5000000,5.00M" {
		t.Fatalf("csv row = %q", lines[2])
	}

	png, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("png output is not a PNG")
	}
}

func TestExportValidation(t *testing.T) {
	cfg := testConfig(t)
	writeHistory(t, cfg.History.Path, storage.NewRecord(10, time.Now()))
	a, _ := newTestApp(cfg)

	if err := a.Export(context.Background(), ExportOptions{}); err == nil {
		t.Fatal("expected error without output paths")
	}
	err := a.Export(context.Background(), ExportOptions{PNGPath: filepath.Join(t.TempDir(), "one.png")})
	if err == nil {
		t.Fatal("expected error charting a single record")
	}
}

func TestDownsampleRecords(t *testing.T) {
	records := make([]storage.DifficultyRecord, 10)
	for i := range records {
		records[i] = storage.NewRecord(float64(i), time.Unix(int64(i), 0))
	}

	got := downsampleRecords(records, 4)
	if len(got) != 4 || got[0].Best != 0 || got[3].Best != 9 {
		t.Fatalf("downsample = %+v", got)
	}
	if len(downsampleRecords(records, 20)) != 10 {
		t.Fatal("short input should pass through")
	}
}

func TestSimulateAlertTelegram(t *testing.T) {
	var received struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Alerting.Telegram = config.TelegramConfig{Enabled: true, BotToken: "token", ChatID: "42", APIBase: srv.URL}
	a, _ := newTestApp(cfg)

	err := a.SimulateAlert(context.Background(), SimulateOptions{Kind: alerting.KindLowHashrate, Value: 300})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if received.ChatID != "42" || !strings.Contains(received.Text, "300.00 MH/s") {
		t.Fatalf("telegram payload = %+v", received)
	}
}

func TestSimulateAlertLogOnly(t *testing.T) {
	a, _ := newTestApp(testConfig(t))
	for _, kind := range alerting.Kinds {
		if err := a.SimulateAlert(context.Background(), SimulateOptions{Kind: kind, Value: 1e6}); err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
	}
}

func TestSyntheticEvent(t *testing.T) {
	a, _ := newTestApp(testConfig(t))
	at := time.Unix(0, 0)

	event, err := a.syntheticEvent(SimulateOptions{Kind: alerting.KindNewBestDifficulty, Value: 568e6}, at)
	if err != nil {
		t.Fatalf("synthetic: %v", err)
	}
	if event.BestDiff != "568.00M" {
		t.Fatalf("best diff = %q", event.BestDiff)
	}

	recovered, _ := a.syntheticEvent(SimulateOptions{Kind: alerting.KindHashrateRecovered, Value: 410}, at)
	if recovered.Threshold != 400 {
		t.Fatalf("threshold = %v", recovered.Threshold)
	}

	if _, err := a.syntheticEvent(SimulateOptions{Kind: alerting.KindNewBestDifficulty}, at); err == nil {
		t.Fatal("expected error for missing value")
	}
	if _, err := a.syntheticEvent(SimulateOptions{Kind: "bogus"}, at); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
