// Package config holds the digestbot configuration and its defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/RobinCoderZhao/digestbot/internal/digestbot/scheduler"
	pkgconfig "github.com/RobinCoderZhao/digestbot/pkg/config"
	"github.com/RobinCoderZhao/digestbot/pkg/httpx"
	"github.com/RobinCoderZhao/digestbot/pkg/notify"
)

// DefaultMirrors are the public 60s digest mirrors, most preferred first.
var DefaultMirrors = []string{
	"https://60s.viki.moe/v2/60s?encoding=text",
	"https://60s.b23.run/v2/60s?encoding=text",
	"https://60s-api-cf.viki.moe/v2/60s?encoding=text",
	"https://60s-api.114128.xyz/v2/60s?encoding=text",
	"https://60s-api-cf.114128.xyz/v2/60s?encoding=text",
}

// Config is the full digestbot configuration.
type Config struct {
	Telegram notify.TelegramConfig `yaml:"telegram"`
	Mirrors  []string              `yaml:"mirrors" env:"DIGESTBOT_MIRRORS"`
	Schedule ScheduleConfig        `yaml:"schedule"`
	Relay    RelayConfig           `yaml:"relay"`
	HTTP     httpx.Config          `yaml:"http"`
	Bot      BotConfig             `yaml:"bot"`
	Metrics  MetricsConfig         `yaml:"metrics"`
	Log      LogConfig             `yaml:"log"`
}

// ScheduleConfig sets the daily delivery time.
type ScheduleConfig struct {
	At       string `yaml:"at" env:"DIGESTBOT_AT"` // HH:MM
	Timezone string `yaml:"timezone" env:"DIGESTBOT_TZ"`
}

// RelayConfig configures the secondary sinks.
type RelayConfig struct {
	TitleLabel string               `yaml:"title_label" env:"DIGESTBOT_TITLE_LABEL"`
	Push       notify.PushConfig    `yaml:"push"`
	Webhook    notify.WebhookConfig `yaml:"webhook"`
	Email      notify.EmailConfig   `yaml:"email"`
}

// BotConfig toggles optional chat behaviour and paces the fan-out.
type BotConfig struct {
	Echo bool `yaml:"echo" env:"DIGESTBOT_ECHO"`
	// SendRate caps fan-out messages per second; 0 disables pacing.
	SendRate  float64 `yaml:"send_rate" env:"DIGESTBOT_SEND_RATE"`
	SendBurst int     `yaml:"send_burst" env:"DIGESTBOT_SEND_BURST"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"DIGESTBOT_METRICS_ADDR"` // e.g. :9090
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level" env:"DIGESTBOT_LOG_LEVEL"`
	Format string `yaml:"format" env:"DIGESTBOT_LOG_FORMAT"` // text or json
}

// Default returns a config with every optional field filled in.
func Default() Config {
	return Config{
		Mirrors:  append([]string(nil), DefaultMirrors...),
		Schedule: ScheduleConfig{At: "08:45", Timezone: "Local"},
		Relay:    RelayConfig{TitleLabel: "每天60秒读懂世界 "},
		HTTP:     httpx.Config{Timeout: 30 * time.Second},
		Bot:      BotConfig{SendRate: 25, SendBurst: 1},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults (a missing file is fine), applies env
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := pkgconfig.LoadOrDefault(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields needed by every command.
func (c Config) Validate() error {
	var errs []error
	if len(c.Mirrors) == 0 {
		errs = append(errs, errors.New("mirrors must contain at least one URL"))
	}
	for _, m := range c.Mirrors {
		u, err := url.Parse(m)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("mirror %q is not an http(s) URL", m))
		}
	}
	if _, err := c.DailyTime(); err != nil {
		errs = append(errs, err)
	}
	if c.Bot.SendRate < 0 {
		errs = append(errs, fmt.Errorf("bot.send_rate must not be negative, got %v", c.Bot.SendRate))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// DailyTime resolves the schedule into a scheduler.TimeOfDay.
func (c Config) DailyTime() (scheduler.TimeOfDay, error) {
	loc := time.Local
	if tz := c.Schedule.Timezone; tz != "" && tz != "Local" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return scheduler.TimeOfDay{}, fmt.Errorf("schedule.timezone: %w", err)
		}
		loc = l
	}
	return scheduler.ParseTimeOfDay(c.Schedule.At, loc)
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// PushEnabled reports whether the push relay has credentials.
func (c Config) PushEnabled() bool { return c.Relay.Push.Token != "" }

// WebhookEnabled reports whether a webhook sink is configured.
func (c Config) WebhookEnabled() bool { return c.Relay.Webhook.URL != "" }

// EmailEnabled reports whether an SMTP host and recipients are set.
func (c Config) EmailEnabled() bool {
	return c.Relay.Email.SMTPHost != "" && len(c.Relay.Email.Recipients()) > 0
}
