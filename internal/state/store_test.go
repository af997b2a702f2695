package state

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	logx "alertd/pkg/logx"
)

// both backends must satisfy the same contract
func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStoreGetOrCreate(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			st, err := s.GetOrCreate(ctx, "u1", "a1")
			if err != nil {
				t.Fatalf("GetOrCreate: %v", err)
			}
			if st.Status != StatusUnread || st.RecipientID != "u1" || st.AlertID != "a1" {
				t.Fatalf("fresh record: %+v", st)
			}

			st.MarkRead(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
			if err := s.Upsert(ctx, st); err != nil {
				t.Fatalf("Upsert: %v", err)
			}

			// GetOrCreate must not reset an existing record.
			again, err := s.GetOrCreate(ctx, "u1", "a1")
			if err != nil {
				t.Fatalf("GetOrCreate: %v", err)
			}
			if again.Status != StatusRead {
				t.Fatalf("existing record reset: %+v", again)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()

			want := State{
				RecipientID:      "u2",
				AlertID:          "a9",
				Status:           StatusSnoozed,
				LastReminderSent: time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC),
				SnoozedUntil:     time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
			}
			if err := s.Upsert(ctx, want); err != nil {
				t.Fatalf("Upsert: %v", err)
			}

			got, ok, err := s.Get(ctx, "u2", "a9")
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if got.Status != want.Status {
				t.Fatalf("status = %q", got.Status)
			}
			if !got.LastReminderSent.Equal(want.LastReminderSent) {
				t.Fatalf("last reminder = %v", got.LastReminderSent)
			}
			if !got.SnoozedUntil.Equal(want.SnoozedUntil) {
				t.Fatalf("snoozed until = %v", got.SnoozedUntil)
			}
			if !got.ReadAt.IsZero() {
				t.Fatalf("read at should be zero, got %v", got.ReadAt)
			}

			if _, ok, err := s.Get(ctx, "nobody", "a9"); err != nil || ok {
				t.Fatalf("Get missing: ok=%v err=%v", ok, err)
			}

			all, err := s.All(ctx)
			if err != nil {
				t.Fatalf("All: %v", err)
			}
			if len(all) != 1 {
				t.Fatalf("All = %d records", len(all))
			}
		})
	}
}

func TestStoreDeliveryLog(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			base := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

			for i := 0; i < 5; i++ {
				rec := DeliveryRecord{
					At:          base.Add(time.Duration(i) * time.Minute),
					AlertID:     "a1",
					RecipientID: fmt.Sprintf("u%d", i),
					Channel:     "inapp",
					OK:          i%2 == 0,
				}
				if !rec.OK {
					rec.Error = "boom"
				}
				if err := s.AppendDelivery(ctx, rec); err != nil {
					t.Fatalf("AppendDelivery: %v", err)
				}
			}

			recs, err := s.RecentDeliveries(ctx, 3)
			if err != nil {
				t.Fatalf("RecentDeliveries: %v", err)
			}
			if len(recs) != 3 {
				t.Fatalf("got %d records", len(recs))
			}
			// newest first
			if recs[0].RecipientID != "u4" || recs[2].RecipientID != "u2" {
				t.Fatalf("unexpected order: %+v", recs)
			}
			if recs[1].Error != "boom" {
				t.Fatalf("error not preserved: %+v", recs[1])
			}
		})
	}
}

func TestActionsMarkReadAndSnooze(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	st, err := MarkRead(ctx, s, "u1", "a1", now)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if st.Status != StatusRead {
		t.Fatalf("status = %q", st.Status)
	}

	// Read is terminal; snoozing afterwards leaves the stored record alone.
	st, err = Snooze(ctx, s, "u1", "a1", now.Add(time.Minute), time.UTC)
	if err != nil {
		t.Fatalf("Snooze: %v", err)
	}
	if st.Status != StatusRead {
		t.Fatalf("snooze overrode read: %+v", st)
	}

	st, err = Snooze(ctx, s, "u2", "a1", now, time.UTC)
	if err != nil {
		t.Fatalf("Snooze: %v", err)
	}
	if st.Status != StatusSnoozed || !st.SnoozedUntil.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("snoozed record: %+v", st)
	}
	stored, ok, err := s.Get(ctx, "u2", "a1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if stored.Status != StatusSnoozed {
		t.Fatalf("snooze not persisted: %+v", stored)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestStoreStampReminderPreservesStatus(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

			if _, err := MarkRead(ctx, s, "u1", "a1", now); err != nil {
				t.Fatalf("MarkRead: %v", err)
			}
			if err := s.StampReminder(ctx, "u1", "a1", now.Add(time.Second)); err != nil {
				t.Fatalf("StampReminder: %v", err)
			}
			st, ok, err := s.Get(ctx, "u1", "a1")
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if st.Status != StatusRead || st.ReadAt.IsZero() {
				t.Fatalf("stamp replaced the read record: %+v", st)
			}
			if !st.LastReminderSent.Equal(now.Add(time.Second)) {
				t.Fatalf("last reminder = %v", st.LastReminderSent)
			}

			// Same for a snoozed record.
			if _, err := Snooze(ctx, s, "u2", "a1", now, time.UTC); err != nil {
				t.Fatalf("Snooze: %v", err)
			}
			if err := s.StampReminder(ctx, "u2", "a1", now.Add(time.Second)); err != nil {
				t.Fatalf("StampReminder: %v", err)
			}
			st, _, _ = s.Get(ctx, "u2", "a1")
			if st.Status != StatusSnoozed || st.SnoozedUntil.IsZero() {
				t.Fatalf("stamp replaced the snoozed record: %+v", st)
			}
		})
	}
}

func TestStoreExpireSnoozeConditional(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

			if _, err := Snooze(ctx, s, "u1", "a1", now, time.UTC); err != nil {
				t.Fatalf("Snooze: %v", err)
			}
			if err := s.ExpireSnooze(ctx, "u1", "a1"); err != nil {
				t.Fatalf("ExpireSnooze: %v", err)
			}
			st, _, _ := s.Get(ctx, "u1", "a1")
			if st.Status != StatusUnread || !st.SnoozedUntil.IsZero() {
				t.Fatalf("expiry not applied: %+v", st)
			}

			// A record that moved to read in the meantime is left alone.
			if _, err := MarkRead(ctx, s, "u2", "a1", now); err != nil {
				t.Fatalf("MarkRead: %v", err)
			}
			if err := s.ExpireSnooze(ctx, "u2", "a1"); err != nil {
				t.Fatalf("ExpireSnooze: %v", err)
			}
			st, _, _ = s.Get(ctx, "u2", "a1")
			if st.Status != StatusRead {
				t.Fatalf("expiry overrode read: %+v", st)
			}
		})
	}
}
