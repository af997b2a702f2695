package analytics

import (
	"context"
	"testing"
	"time"

	"alertd/internal/alert"
	"alertd/internal/state"
)

func TestSummary(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	registry := alert.NewMemoryRegistry()
	_, _ = registry.Create(ctx, alert.Alert{Title: "a", Message: "m", CreatedBy: "x", Severity: alert.SeverityCritical, StartAt: now.Add(-time.Hour)})
	_, _ = registry.Create(ctx, alert.Alert{Title: "b", Message: "m", CreatedBy: "x", StartAt: now.Add(-time.Hour)})
	expired := alert.StatusExpired
	old, _ := registry.Create(ctx, alert.Alert{Title: "c", Message: "m", CreatedBy: "x", StartAt: now.Add(-48 * time.Hour)})
	_, _ = registry.Update(ctx, old.ID, alert.Update{Status: &expired})

	store := state.NewMemory()
	st, _ := store.GetOrCreate(ctx, "u1", "a1")
	st.MarkRead(now)
	_ = store.Upsert(ctx, st)
	st2, _ := store.GetOrCreate(ctx, "u2", "a1")
	st2.Snooze(now, time.UTC)
	_ = store.Upsert(ctx, st2)
	_, _ = store.GetOrCreate(ctx, "u3", "a1")

	sum, err := New(registry, store).Summary(ctx, now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalAlerts != 3 {
		t.Fatalf("total = %d", sum.TotalAlerts)
	}
	if sum.ActiveAlerts != 2 {
		t.Fatalf("active = %d", sum.ActiveAlerts)
	}
	if sum.ExpiredAlerts != 1 {
		t.Fatalf("expired = %d", sum.ExpiredAlerts)
	}
	if sum.BySeverity[alert.SeverityCritical] != 1 || sum.BySeverity[alert.SeverityInfo] != 2 {
		t.Fatalf("by severity = %v", sum.BySeverity)
	}
	if sum.Delivery.Delivered != 3 || sum.Delivery.Read != 1 || sum.Delivery.Snoozed != 1 {
		t.Fatalf("delivery stats = %+v", sum.Delivery)
	}
}
