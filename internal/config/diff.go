package config

import (
	logx "slotbot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// safe fields for logging them. The bot token is never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 10)

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}
	if oldCfg.Browser != newCfg.Browser {
		changed = append(changed, "browser")
		attrs = append(attrs,
			logx.String("browser.host", newCfg.Browser.Host),
			logx.Int("browser.port", newCfg.Browser.Port),
		)
	}
	if oldCfg.TargetURL != newCfg.TargetURL {
		changed = append(changed, "target_url")
		attrs = append(attrs, logx.String("target_url", newCfg.TargetURL))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.retry_max", newCfg.Notifier.RetryMax),
		)
	}
	return changed, attrs
}

// RequiresRestart reports whether any changed section can only take effect
// after a restart.
func RequiresRestart(changed []string) bool {
	for _, s := range changed {
		switch s {
		case "logging", "notifier":
		default:
			return true
		}
	}
	return false
}
