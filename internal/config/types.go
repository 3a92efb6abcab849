// Package config loads slotbot settings.
//
// Settings come from an optional YAML or JSON file, then environment
// variables (which win), then defaults. The bot token and the target URL have
// no defaults: a config without them fails Validate.
package config

import (
	"errors"
	"time"

	"slotbot/internal/browser"
	"slotbot/internal/notifier"
	"slotbot/internal/transport/telegram"
	logx "slotbot/pkg/logx"
)

var (
	ErrMissingToken     = errors.New("no bot token found; set TELEGRAM_BOT_TOKEN")
	ErrMissingTargetURL = errors.New("no target url; set TARGET_URL")
)

type Config struct {
	Telegram  TelegramConfig `json:"telegram"`
	Browser   BrowserConfig  `json:"browser"`
	TargetURL string         `json:"target_url"`
	Logging   LoggingConfig  `json:"logging"`
	Notifier  NotifierConfig `json:"notifier"`
}

type TelegramConfig struct {
	// Token is normally supplied through TELEGRAM_BOT_TOKEN.
	Token       string `json:"token,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type BrowserConfig struct {
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	NavTimeout string `json:"nav_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// NotifierConfig durations are Go duration strings ("500ms", "10s").
type NotifierConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	DedupWindow   string `json:"dedup_window,omitempty"`
}

// Default returns the settings used when neither file nor env set a value.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{Host: browser.DefaultHost, Port: browser.DefaultPort},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// Validate checks required settings and that every duration parses.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.TargetURL == "" {
		return ErrMissingTargetURL
	}
	if c.Browser.Port <= 0 || c.Browser.Port > 65535 {
		return errors.New("browser.port: must be in 1..65535")
	}
	if _, err := c.TelegramSettings(); err != nil {
		return err
	}
	if _, err := c.BrowserSettings(); err != nil {
		return err
	}
	if _, err := c.NotifierSettings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) TelegramSettings() (telegram.Config, error) {
	pt, err := timeout("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: c.Telegram.Token, PollTimeout: pt}, nil
}

func (c *Config) BrowserSettings() (browser.Config, error) {
	nt, err := timeout("browser.nav_timeout", c.Browser.NavTimeout, browser.DefaultNavTimeout)
	if err != nil {
		return browser.Config{}, err
	}
	return browser.Config{Host: c.Browser.Host, Port: c.Browser.Port, NavTimeout: nt}, nil
}

func (c *Config) LoggingSettings() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

func (c *Config) NotifierSettings() (notifier.Config, error) {
	n := c.Notifier
	out := notifier.Config{
		Workers:    n.Workers,
		QueueSize:  n.QueueSize,
		RatePerSec: n.RatePerSec,
		RetryMax:   n.RetryMax,
	}
	var err error
	if out.RetryBase, err = duration("notifier.retry_base", n.RetryBase, 0); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = duration("notifier.retry_max_delay", n.RetryMaxDelay, 0); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = duration("notifier.dedup_window", n.DedupWindow, 0); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}
