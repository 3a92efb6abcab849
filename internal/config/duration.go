package config

import (
	"fmt"
	"strings"
	"time"
)

// duration parses a Go duration setting such as "500ms". Empty yields def;
// negative values are rejected. Errors name the config key.
func duration(key, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration: %w", key, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: %q is negative", key, raw)
	}
	return d, nil
}

// timeout is duration for settings where zero makes no sense; "0s" falls back
// to def as well.
func timeout(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := duration(key, raw, def)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
