package alert

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"info", SeverityInfo, false},
		{"WARNING", SeverityWarning, false},
		{" critical ", SeverityCritical, false},
		{"fatal", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := ParseSeverity(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseSeverity(%q): expected error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
}

func TestLive(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a    Alert
		want bool
	}{
		{"active no bounds", Alert{Status: StatusActive}, true},
		{"archived", Alert{Status: StatusArchived}, false},
		{"expired status", Alert{Status: StatusExpired}, false},
		{"before start", Alert{Status: StatusActive, StartAt: now.Add(time.Hour)}, false},
		{"at start", Alert{Status: StatusActive, StartAt: now}, true},
		{"past expiry", Alert{Status: StatusActive, ExpiresAt: now.Add(-time.Minute)}, false},
		{"at expiry", Alert{Status: StatusActive, ExpiresAt: now}, true},
		{"within window", Alert{Status: StatusActive, StartAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}, true},
	}
	for _, c := range cases {
		if got := c.a.Live(now); got != c.want {
			t.Errorf("%s: Live = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNewVisibility(t *testing.T) {
	if _, err := NewVisibility("broadcast", nil); err == nil {
		t.Fatal("expected error for unknown scope")
	}

	v, err := NewVisibility("Team", []string{"eng", "eng", " ", "ops"})
	if err != nil {
		t.Fatalf("NewVisibility: %v", err)
	}
	if v.Scope != ScopeTeam {
		t.Fatalf("scope = %q", v.Scope)
	}
	if len(v.TeamIDs) != 2 || v.TeamIDs[0] != "eng" || v.TeamIDs[1] != "ops" {
		t.Fatalf("team ids = %v", v.TeamIDs)
	}

	u, err := NewVisibility("user", []string{"u1"})
	if err != nil {
		t.Fatalf("NewVisibility: %v", err)
	}
	if len(u.UserIDs) != 1 || u.UserIDs[0] != "u1" {
		t.Fatalf("user ids = %v", u.UserIDs)
	}
}

func TestRegistryCreateDefaults(t *testing.T) {
	r := NewMemoryRegistry()
	a, err := r.Create(context.Background(), Alert{Title: "t", Message: "m", CreatedBy: "admin"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected generated id")
	}
	if a.Severity != SeverityInfo {
		t.Fatalf("severity = %q", a.Severity)
	}
	if a.Status != StatusActive {
		t.Fatalf("status = %q", a.Status)
	}
	if a.ReminderEvery != DefaultReminderEvery {
		t.Fatalf("reminder every = %v", a.ReminderEvery)
	}
	if a.Visibility.Scope != ScopeOrganization {
		t.Fatalf("visibility = %q", a.Visibility.Scope)
	}
	if a.StartAt.IsZero() || a.CreatedAt.IsZero() {
		t.Fatal("expected timestamps to be filled")
	}
}

func TestRegistryUpdateAndArchive(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	a, err := r.Create(ctx, Alert{Title: "t", Message: "m", CreatedBy: "admin"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	title := "updated"
	enabled := false
	got, err := r.Update(ctx, a.ID, Update{Title: &title, RemindersEnabled: &enabled})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "updated" || got.RemindersEnabled {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := r.Archive(ctx, a.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err = r.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusArchived {
		t.Fatalf("status after archive = %q", got.Status)
	}

	if _, err := r.Update(ctx, "missing", Update{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryActiveFiltersLive(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	now := time.Now()

	live, _ := r.Create(ctx, Alert{Title: "live", Message: "m", CreatedBy: "a"})
	_, _ = r.Create(ctx, Alert{Title: "future", Message: "m", CreatedBy: "a", StartAt: now.Add(time.Hour)})
	expired, _ := r.Create(ctx, Alert{Title: "old", Message: "m", CreatedBy: "a", ExpiresAt: now.Add(-time.Hour)})
	archived, _ := r.Create(ctx, Alert{Title: "gone", Message: "m", CreatedBy: "a"})
	if err := r.Archive(ctx, archived.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	_ = expired

	got, err := r.Active(ctx, now)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(got) != 1 || got[0].ID != live.ID {
		t.Fatalf("Active = %+v, want only %s", got, live.ID)
	}
}

func TestRegistryListFilter(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	_, _ = r.Create(ctx, Alert{Title: "a", Message: "m", CreatedBy: "x", Severity: SeverityCritical})
	_, _ = r.Create(ctx, Alert{Title: "b", Message: "m", CreatedBy: "x", Severity: SeverityInfo})

	got, err := r.List(ctx, ListFilter{Severity: SeverityCritical})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Severity != SeverityCritical {
		t.Fatalf("List = %+v", got)
	}
}
