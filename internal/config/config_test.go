package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "slotbot/pkg/logx"
)

// clearEnv blanks every recognized variable; empty counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBotToken, EnvChromeHost, EnvChromePort, EnvTargetURL, EnvLogLevel, EnvLogFile, EnvLogConsole} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, " 123:abc ")
	t.Setenv(EnvTargetURL, "https://booking.example/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "https://booking.example/", cfg.TargetURL)
	assert.Equal(t, "localhost", cfg.Browser.Host)
	assert.Equal(t, 9222, cfg.Browser.Port)

	bc, err := cfg.BrowserSettings()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9222", bc.Endpoint())
}

func TestLoadMissingToken(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTargetURL, "https://booking.example/")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestLoadMissingTargetURL(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingTargetURL)
}

func TestLoadBadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	t.Setenv(EnvTargetURL, "https://booking.example/")
	t.Setenv(EnvChromePort, "chrome")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvChromePort)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	t.Setenv(EnvChromePort, "9333")
	path := writeFile(t, "slotbot.yaml", `
target_url: https://booking.example/from-file
browser:
  host: chrome
  port: 4000
  nav_timeout: 30s
logging:
  level: debug
  console: true
notifier:
  rate_per_sec: 5
  retry_max: 2
  retry_base: 200ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://booking.example/from-file", cfg.TargetURL)
	assert.Equal(t, "chrome", cfg.Browser.Host)
	assert.Equal(t, 9333, cfg.Browser.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	bc, err := cfg.BrowserSettings()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, bc.NavTimeout)

	nc, err := cfg.NotifierSettings()
	require.NoError(t, err)
	assert.Equal(t, 5, nc.RatePerSec)
	assert.Equal(t, 2, nc.RetryMax)
	assert.Equal(t, 200*time.Millisecond, nc.RetryBase)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	path := writeFile(t, "slotbot.json", `{"target_url":"https://x.example","poll_every":"1m"}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_every")
}

func TestLoadRejectsTrailingData(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	path := writeFile(t, "slotbot.json", `{"target_url":"https://x.example"}{}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	path := writeFile(t, "slotbot.yml", "target_url: https://x.example\nnotifier:\n  retry_base: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notifier.retry_base")
}

func TestLogFileEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	t.Setenv(EnvTargetURL, "https://x.example")
	t.Setenv(EnvLogFile, "/var/log/slotbot.log")
	t.Setenv(EnvLogConsole, "off")

	cfg, err := Load("")
	require.NoError(t, err)
	lc := cfg.LoggingSettings()
	assert.True(t, lc.File.Enabled)
	assert.Equal(t, "/var/log/slotbot.log", lc.File.Path)
	assert.False(t, lc.Console)
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := Default()
	a.Telegram.Token = "old-secret"
	b := *a
	b.Logging.Level = "debug"
	b.Telegram.Token = "new-secret"

	changed, attrs := SummarizeChange(a, &b)

	assert.Equal(t, []string{"telegram", "logging"}, changed)
	assert.NotEmpty(t, attrs)
	assert.True(t, RequiresRestart(changed))
	assert.False(t, RequiresRestart([]string{"logging"}))
}

func TestManagerWatchPublishesChanges(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	path := writeFile(t, "slotbot.yaml", "target_url: https://x.example\nlogging:\n  level: info\n")

	m := NewManager(path, logx.Nop())
	_, err := m.Load()
	require.NoError(t, err)
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("target_url: https://x.example\nlogging:\n  level: debug\n"), 0o600))

	select {
	case cfg := <-sub:
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "debug", m.Get().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestManagerIgnoresInvalidReload(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "t")
	path := writeFile(t, "slotbot.yaml", "target_url: https://x.example\n")

	m := NewManager(path, logx.Nop())
	_, err := m.Load()
	require.NoError(t, err)
	sub := m.Subscribe(1)

	require.NoError(t, os.WriteFile(path, []byte("target_url: [\n"), 0o600))
	m.reload()

	assert.Empty(t, sub)
	assert.Equal(t, "https://x.example", m.Get().TargetURL)
}

func TestDurationSettings(t *testing.T) {
	t.Parallel()
	d, err := duration("notifier.retry_base", " ", 0)
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = duration("notifier.retry_base", "250ms", 0)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = duration("notifier.dedup_window", "-1s", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notifier.dedup_window")

	d, err = timeout("browser.nav_timeout", "0s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}
