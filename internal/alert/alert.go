package alert

import (
	"fmt"
	"strings"
	"time"
)

// Severity is informational only; it never affects reminder logic.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityCritical:
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusArchived Status = "archived"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusExpired:
		return StatusExpired, nil
	case StatusArchived:
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("unknown alert status %q", s)
	}
}

// DefaultReminderEvery is the reminder cadence applied when an alert does not
// specify one.
const DefaultReminderEvery = 2 * time.Hour

// Alert is a time-bounded notice targeted at an audience.
//
// Identity fields (ID, Title, Message, Severity, CreatedBy) are immutable
// after creation from the core's point of view; Status and timing fields are
// owned by the Registry.
type Alert struct {
	ID        string
	Title     string
	Message   string
	Severity  Severity
	Channel   string // delivery channel name; empty means the router default
	CreatedBy string

	Visibility Visibility

	StartAt   time.Time
	ExpiresAt time.Time // zero means no expiry

	ReminderEvery    time.Duration
	RemindersEnabled bool

	Status    Status
	CreatedAt time.Time
}

// Live reports whether the alert should be considered by a sweep at now:
// status is active, the start time has passed, and the expiry (if any) has not.
func (a Alert) Live(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	if now.Before(a.StartAt) {
		return false
	}
	if !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt) {
		return false
	}
	return true
}
