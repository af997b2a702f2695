package config

import "time"

// Config is the whole alertd configuration file (JSON or YAML).
//
// All duration fields are Go duration strings (e.g. "30s", "2h").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	API       APIConfig       `json:"api"`
	Sweep     SweepConfig     `json:"sweep"`
	Delivery  DeliveryConfig  `json:"delivery,omitempty"`
	Directory DirectoryConfig `json:"directory"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type APIConfig struct {
	Enabled          bool     `json:"enabled"`
	Addr             string   `json:"addr,omitempty"` // default: "127.0.0.1:8080"
	CORSAllowOrigins []string `json:"cors_allow_origins,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// SweepConfig controls the reminder sweep.
//
// Schedule accepts a cron spec or "@every <duration>"; default "@every 1m".
// Timezone positions both the trigger and snooze midnights.
type SweepConfig struct {
	Enabled     bool   `json:"enabled"`
	Schedule    string `json:"schedule,omitempty"`
	Workers     int    `json:"workers,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

type DeliveryConfig struct {
	Webhook  *WebhookChannelConfig  `json:"webhook,omitempty"`
	Telegram *TelegramChannelConfig `json:"telegram,omitempty"`
}

type WebhookChannelConfig struct {
	URL        string            `json:"url"`
	HMACSecret string            `json:"hmac_secret,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timeout    string            `json:"timeout,omitempty"`
}

type TelegramChannelConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// DirectoryConfig seeds the static directory. Teams are derived from each
// recipient's team_id; explicit teams add members on top (e.g. cross-team
// groups).
type DirectoryConfig struct {
	Recipients []RecipientConfig `json:"recipients"`
	Teams      []TeamConfig      `json:"teams,omitempty"`
}

type RecipientConfig struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	TeamID         string `json:"team_id,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

type TeamConfig struct {
	ID        string   `json:"id"`
	MemberIDs []string `json:"member_ids"`
}

// StorageConfig controls the notification-state backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./alertd.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// Durations parsed out of the string fields above live next to their sections
// so callers don't re-parse.

func (c APIConfig) Timeouts() (read, write, idle time.Duration, err error) {
	if read, err = ParseDurationOrDefault("api.read_timeout", c.ReadTimeout, 10*time.Second); err != nil {
		return
	}
	if write, err = ParseDurationOrDefault("api.write_timeout", c.WriteTimeout, 30*time.Second); err != nil {
		return
	}
	idle, err = ParseDurationOrDefault("api.idle_timeout", c.IdleTimeout, 60*time.Second)
	return
}
