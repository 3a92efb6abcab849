package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Environment variables recognized by Load.
const (
	EnvBotToken   = "TELEGRAM_BOT_TOKEN"
	EnvChromeHost = "REMOTE_CHROME_HOST"
	EnvChromePort = "REMOTE_CHROME_PORT"
	EnvTargetURL  = "TARGET_URL"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogFile    = "LOG_FILE"
	EnvLogConsole = "LOG_CONSOLE"
)

// Load builds the effective config: defaults, then the file at path (skipped
// when path is empty), then the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := parseFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseFile decodes path into cfg, overriding only the keys it sets.
// Unknown keys and trailing data are rejected.
func parseFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return fmt.Errorf("parse %s config %s: %w", format, path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode %s config %s: %w", format, path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return fmt.Errorf("invalid config %s: trailing data", path)
		}
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Telegram.Token = strings.TrimSpace(getEnv(EnvBotToken, cfg.Telegram.Token))
	cfg.Browser.Host = getEnv(EnvChromeHost, cfg.Browser.Host)
	cfg.TargetURL = strings.TrimSpace(getEnv(EnvTargetURL, cfg.TargetURL))
	cfg.Logging.Level = getEnv(EnvLogLevel, cfg.Logging.Level)
	cfg.Logging.Console = getEnvBool(EnvLogConsole, cfg.Logging.Console)
	if p := getEnv(EnvLogFile, ""); p != "" {
		cfg.Logging.File = LoggingFileConfig{Enabled: true, Path: p}
	}

	port, err := getEnvInt(EnvChromePort, cfg.Browser.Port)
	if err != nil {
		return err
	}
	cfg.Browser.Port = port
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// getEnvInt fails on a malformed value instead of silently using fallback.
func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}
