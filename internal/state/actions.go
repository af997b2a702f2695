package state

import (
	"context"
	"time"
)

// Recipient-facing actions. The HTTP layer calls these directly; they go
// through the store so the single-writer-per-key discipline holds.

// MarkRead marks the pair read. Safe to call repeatedly; read is sticky.
func MarkRead(ctx context.Context, store Store, recipientID, alertID string, now time.Time) (State, error) {
	st, err := store.GetOrCreate(ctx, recipientID, alertID)
	if err != nil {
		return State{}, err
	}
	if !st.MarkRead(now) {
		return st, nil
	}
	if err := store.Upsert(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Snooze defers reminders for the pair until the next midnight in loc.
// Snoozing a read record is a silent no-op (read stays terminal).
func Snooze(ctx context.Context, store Store, recipientID, alertID string, now time.Time, loc *time.Location) (State, error) {
	st, err := store.GetOrCreate(ctx, recipientID, alertID)
	if err != nil {
		return State{}, err
	}
	if !st.Snooze(now, loc) {
		return st, nil
	}
	if err := store.Upsert(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}
