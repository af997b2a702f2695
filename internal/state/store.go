package state

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "alertd/pkg/logx"
)

// Key identifies one notification record.
type Key struct {
	RecipientID string
	AlertID     string
}

// DeliveryRecord is one delivery attempt, kept for operational visibility.
// It is an audit trail, not notification state: failed attempts appear here
// while the State record stays untouched.
type DeliveryRecord struct {
	At          time.Time
	AlertID     string
	RecipientID string
	Channel     string
	OK          bool
	Error       string
}

// Store owns the notification records. It is the only writer and serializes
// writes per key; see the sweep service for the single-sweep discipline that
// keeps concurrent writers off the same pair.
type Store interface {
	// GetOrCreate returns the record for the pair, creating it in unread on
	// first observation.
	GetOrCreate(ctx context.Context, recipientID, alertID string) (State, error)
	// Upsert replaces the record for st's pair.
	Upsert(ctx context.Context, st State) error
	// Get returns the record without creating it.
	Get(ctx context.Context, recipientID, alertID string) (State, bool, error)
	// All snapshots every record (analytics reads).
	All(ctx context.Context) ([]State, error)

	// StampReminder records a successful delivery by setting the pair's
	// LastReminderSent only. The sweeper holds a record fetched before the
	// send; a recipient action (read, snooze) landing while the delivery is
	// in flight must survive, so the stamp merges instead of replacing.
	StampReminder(ctx context.Context, recipientID, alertID string, at time.Time) error
	// ExpireSnooze moves a snoozed record back to unread and clears
	// SnoozedUntil, but only if the record is still snoozed. A concurrent
	// MarkRead wins.
	ExpireSnooze(ctx context.Context, recipientID, alertID string) error

	AppendDelivery(ctx context.Context, rec DeliveryRecord) error
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)

	Close() error
}

// Config configures the store backend.
//
// Driver values:
//   - "" or "memory": in-process map (default; persistence is a non-goal)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state store driver: " + cfg.Driver)
	}
}
