package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"axewatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Bitaxe   BitaxeConfig   `mapstructure:"bitaxe"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Settings SettingsConfig `mapstructure:"settings"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	History  HistoryConfig  `mapstructure:"history"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name string `mapstructure:"name"`
}

// BitaxeConfig points at the miner's local API.
type BitaxeConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MonitorConfig governs the alert poller.
type MonitorConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	LowHashrate       float64       `mapstructure:"low_hashrate"`
	RecoveredHashrate float64       `mapstructure:"recovered_hashrate"`
	RecordHistory     bool          `mapstructure:"record_history"`
}

// SettingsConfig keeps the presentation cadences. Intervals are in seconds.
type SettingsConfig struct {
	ConsoleIntervalSec int    `mapstructure:"console_interval_sec"`
	DashboardInterval  int    `mapstructure:"dashboard_interval"`
	Timezone           string `mapstructure:"timezone"`
	DashboardChannelID string `mapstructure:"dashboard_channel_id"`
}

// DiscordConfig holds bot credentials and routing.
type DiscordConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Token         string `mapstructure:"token"`
	ChannelID     string `mapstructure:"channel_id"`
	CommandPrefix string `mapstructure:"command_prefix"`
	StartupHelp   bool   `mapstructure:"startup_help"`
}

// AlertingConfig defines additional alert routing.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// HistoryConfig locates the best-difficulty history file.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults. Without
// an explicit path, the first of configCandidates in the working directory
// is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AXEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := readConfig(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper, path string) error {
	if path == "" {
		path = discover(".")
		if path == "" {
			return nil
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".ini") {
		return mergeINI(v, path)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

var configCandidates = []string{"config.yaml", "config.yml", "config.toml", "config.json", "config.ini"}

func discover(dir string) string {
	for _, name := range configCandidates {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// mergeINI loads the sectioned key=value layout used by config.ini.
func mergeINI(v *viper.Viper, path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	settings := make(map[string]any)
	for _, section := range file.Sections() {
		values := make(map[string]any, len(section.Keys()))
		for _, key := range section.Keys() {
			values[strings.ToLower(key.Name())] = key.Value()
		}
		if len(values) == 0 {
			continue
		}
		if section.Name() == ini.DefaultSection {
			for k, val := range values {
				settings[k] = val
			}
			continue
		}
		settings[strings.ToLower(section.Name())] = values
	}

	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "axewatch")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.time_format", "")
	v.SetDefault("logging.caller", false)
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.no_color", false)

	v.SetDefault("bitaxe.api_url", "")
	v.SetDefault("bitaxe.request_timeout", "5s")
	v.SetDefault("bitaxe.user_agent", "")

	v.SetDefault("monitor.interval", "60s")
	v.SetDefault("monitor.low_hashrate", 350.0)
	v.SetDefault("monitor.recovered_hashrate", 400.0)
	v.SetDefault("monitor.record_history", true)

	v.SetDefault("settings.console_interval_sec", 30)
	v.SetDefault("settings.dashboard_interval", 30)
	v.SetDefault("settings.timezone", "Europe/Berlin")
	v.SetDefault("settings.dashboard_channel_id", "")

	v.SetDefault("discord.enabled", true)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.channel_id", "")
	v.SetDefault("discord.command_prefix", "!")
	v.SetDefault("discord.startup_help", true)

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("history.path", "best_difficulty_history.json")

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Monitor.LowHashrate < 0 {
		return fmt.Errorf("monitor.low_hashrate cannot be negative")
	}
	if c.Monitor.LowHashrate > c.Monitor.RecoveredHashrate {
		return fmt.Errorf("monitor.low_hashrate must not exceed monitor.recovered_hashrate")
	}
	if c.Settings.ConsoleIntervalSec <= 0 {
		return fmt.Errorf("settings.console_interval_sec must be greater than zero")
	}
	if c.Settings.DashboardInterval <= 0 {
		return fmt.Errorf("settings.dashboard_interval must be greater than zero")
	}
	if _, err := time.LoadLocation(c.Settings.Timezone); err != nil {
		return fmt.Errorf("settings.timezone: %w", err)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path must be set")
	}
	if c.DiscordActive() && strings.TrimSpace(c.Discord.ChannelID) == "" {
		return fmt.Errorf("discord.channel_id must be set when discord.token is configured")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}

// DiscordActive reports whether the Discord bot should be started.
func (c *Config) DiscordActive() bool {
	return c.Discord.Enabled && strings.TrimSpace(c.Discord.Token) != ""
}

// ConsoleInterval is settings.console_interval_sec as a duration.
func (c *Config) ConsoleInterval() time.Duration {
	return time.Duration(c.Settings.ConsoleIntervalSec) * time.Second
}

// DashboardInterval is settings.dashboard_interval as a duration.
func (c *Config) DashboardInterval() time.Duration {
	return time.Duration(c.Settings.DashboardInterval) * time.Second
}

// Location resolves settings.timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
