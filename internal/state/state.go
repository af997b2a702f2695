// Package state owns the per-(recipient, alert) notification records and the
// unread/read/snoozed state machine, including the reminder-eligibility gate.
package state

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusUnread  Status = "unread"
	StatusRead    Status = "read"
	StatusSnoozed Status = "snoozed"
)

// State is one notification record. Records are created lazily in unread on
// first lookup for a pair and are never deleted while the owning alert exists.
//
// Invariants (enforced; violations are programming errors):
//   - SnoozedUntil is set iff Status == snoozed.
//   - ReadAt is set iff the record is (or was) read; read is terminal.
type State struct {
	RecipientID string
	AlertID     string
	Status      Status

	LastReminderSent time.Time
	SnoozedUntil     time.Time
	ReadAt           time.Time
}

// New returns a fresh unread record for the pair.
func New(recipientID, alertID string) State {
	return State{RecipientID: recipientID, AlertID: alertID, Status: StatusUnread}
}

// MarkRead moves the record to read and stamps ReadAt. Read is sticky: calling
// it again is a no-op. Reports whether the record changed.
func (s *State) MarkRead(now time.Time) bool {
	if s.Status == StatusRead {
		return false
	}
	s.Status = StatusRead
	s.ReadAt = now
	s.SnoozedUntil = time.Time{}
	return true
}

// Snooze defers reminders until the start of the next calendar day in loc
// (local midnight strictly after now). Snoozing a read record is a deliberate
// no-op: read stays terminal. Reports whether the record changed.
func (s *State) Snooze(now time.Time, loc *time.Location) bool {
	if s.Status == StatusRead {
		return false
	}
	s.Status = StatusSnoozed
	s.SnoozedUntil = NextMidnight(now, loc)
	return true
}

// ShouldRemind is the sole throttling gate, evaluated at sweep time.
//
// Its one permitted side effect: an expired snooze transitions the record back
// to unread before eligibility is evaluated, so a just-expired snooze can
// become eligible within the same sweep. Callers must persist the record when
// this returns with a mutation (compare against the pre-call value or just
// upsert unconditionally on transition).
func (s *State) ShouldRemind(now time.Time, every time.Duration) bool {
	if s.Status == StatusSnoozed {
		if s.SnoozedUntil.IsZero() {
			panic(fmt.Sprintf("state: %s/%s snoozed without snoozed-until", s.RecipientID, s.AlertID))
		}
		if !now.After(s.SnoozedUntil) {
			return false
		}
		// Lazy snooze expiry.
		s.Status = StatusUnread
		s.SnoozedUntil = time.Time{}
	}

	if s.Status == StatusRead {
		return false
	}
	if s.LastReminderSent.IsZero() {
		return true
	}
	return now.Sub(s.LastReminderSent) >= every
}

// NextMidnight returns the first midnight in loc strictly after now.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}
