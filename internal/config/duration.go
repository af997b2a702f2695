package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-valued settings (sweep cadence, API timeouts, webhook timeout,
// sqlite busy_timeout) are Go duration strings in the file. These helpers
// parse them with the config path in the error so a rejected reload names
// the offending field.

// ParseDurationField parses raw, treating empty as zero (setting absent).
// Negative durations are rejected; no setting in this config means "go back
// in time".
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for absent or
// zero values, for settings that always need an effective value (the API
// server timeouts).
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
