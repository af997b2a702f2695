package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"alertd/internal/alert"
	"alertd/internal/analytics"
	"alertd/internal/delivery"
	"alertd/internal/directory"
	"alertd/internal/state"
	"alertd/internal/sweep"
	logx "alertd/pkg/logx"
)

type fixture struct {
	registry alert.Registry
	store    state.Store
	inapp    *delivery.InApp
	mux      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := directory.NewStatic([]directory.Recipient{
		{ID: "u1", TeamID: "eng"},
		{ID: "u2", TeamID: "eng"},
		{ID: "u3", TeamID: "ops"},
	}, nil)
	registry := alert.NewMemoryRegistry()
	store := state.NewMemory()
	inapp := delivery.NewInApp()
	router := delivery.NewRouter(dir, inapp)
	sweeper := sweep.New(sweep.Config{Workers: 1, Timezone: "UTC"}, registry, dir, store, router, logx.Nop(), nil)
	engine := analytics.New(registry, store)

	h := NewHandlers(registry, store, dir, router, inapp, sweeper, engine, nil, logx.Nop())
	srv := NewServer(Config{}, h, logx.Nop())
	return &fixture{registry: registry, store: store, inapp: inapp, mux: srv.Router()}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateAlert(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/alerts", map[string]any{
		"title":           "db maintenance",
		"message":         "failover at noon",
		"severity":        "warning",
		"created_by":      "admin",
		"visibility_type": "team",
		"target_ids":      []string{"eng"},
		"reminder_every":  "4h",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := decode[alertResponse](t, rec)
	if got.ID == "" || got.Severity != "warning" || got.VisibilityType != "team" {
		t.Fatalf("response = %+v", got)
	}
	if got.ReminderEvery != "4h0m0s" {
		t.Fatalf("reminder_every = %q", got.ReminderEvery)
	}
	if !got.RemindersEnabled {
		t.Fatal("reminders should default to enabled")
	}
}

func TestCreateAlertValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"message": "m", "created_by": "a", "visibility_type": "organization"}},
		{"bad severity", map[string]any{"title": "t", "message": "m", "created_by": "a", "severity": "fatal", "visibility_type": "organization"}},
		{"bad visibility", map[string]any{"title": "t", "message": "m", "created_by": "a", "visibility_type": "broadcast"}},
		{"bad channel", map[string]any{"title": "t", "message": "m", "created_by": "a", "visibility_type": "organization", "channel": "carrier-pigeon"}},
		{"bad reminder_every", map[string]any{"title": "t", "message": "m", "created_by": "a", "visibility_type": "organization", "reminder_every": "-1h"}},
		{"bad start_at", map[string]any{"title": "t", "message": "m", "created_by": "a", "visibility_type": "organization", "start_at": "tomorrow"}},
	}
	for _, c := range cases {
		if rec := f.do(t, http.MethodPost, "/admin/alerts", c.body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", c.name, rec.Code)
		}
	}
}

func TestUpdateAndArchiveAlert(t *testing.T) {
	f := newFixture(t)
	created := decode[alertResponse](t, f.do(t, http.MethodPost, "/admin/alerts", map[string]any{
		"title": "t", "message": "m", "created_by": "a", "visibility_type": "organization",
	}))

	rec := f.do(t, http.MethodPut, "/admin/alerts/"+created.ID, map[string]any{
		"title": "t2", "reminders_enabled": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := decode[alertResponse](t, rec)
	if got.Title != "t2" || got.RemindersEnabled {
		t.Fatalf("update response = %+v", got)
	}

	if rec := f.do(t, http.MethodPost, "/admin/alerts/"+created.ID+"/archive", nil); rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/admin/alerts/missing/archive", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("archive missing status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/admin/alerts/missing", map[string]any{"title": "x"}); rec.Code != http.StatusNotFound {
		t.Fatalf("update missing status = %d", rec.Code)
	}
}

func TestListAlertsFilter(t *testing.T) {
	f := newFixture(t)
	for _, sev := range []string{"info", "critical"} {
		f.do(t, http.MethodPost, "/admin/alerts", map[string]any{
			"title": "t", "message": "m", "created_by": "a", "severity": sev, "visibility_type": "organization",
		})
	}

	got := decode[[]alertResponse](t, f.do(t, http.MethodGet, "/admin/alerts?severity=critical", nil))
	if len(got) != 1 || got[0].Severity != "critical" {
		t.Fatalf("filtered list = %+v", got)
	}
	if rec := f.do(t, http.MethodGet, "/admin/alerts?severity=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d", rec.Code)
	}
}

func TestUserAlertsAndActions(t *testing.T) {
	f := newFixture(t)
	created := decode[alertResponse](t, f.do(t, http.MethodPost, "/admin/alerts", map[string]any{
		"title": "t", "message": "m", "created_by": "a", "visibility_type": "team", "target_ids": []string{"eng"},
	}))

	list := decode[[]userAlertResponse](t, f.do(t, http.MethodGet, "/users/u1/alerts", nil))
	if len(list) != 1 || list[0].UserStatus != "unread" {
		t.Fatalf("user alerts = %+v", list)
	}

	// u3 is in ops, outside the audience.
	if got := decode[[]userAlertResponse](t, f.do(t, http.MethodGet, "/users/u3/alerts", nil)); len(got) != 0 {
		t.Fatalf("ops user sees team alert: %+v", got)
	}

	if rec := f.do(t, http.MethodPost, fmt.Sprintf("/users/u1/alerts/%s/read", created.ID), nil); rec.Code != http.StatusOK {
		t.Fatalf("read status = %d", rec.Code)
	}
	list = decode[[]userAlertResponse](t, f.do(t, http.MethodGet, "/users/u1/alerts", nil))
	if list[0].UserStatus != "read" || list[0].ReadAt == "" {
		t.Fatalf("after read: %+v", list[0])
	}

	if rec := f.do(t, http.MethodPost, fmt.Sprintf("/users/u2/alerts/%s/snooze", created.ID), nil); rec.Code != http.StatusOK {
		t.Fatalf("snooze status = %d", rec.Code)
	}
	list = decode[[]userAlertResponse](t, f.do(t, http.MethodGet, "/users/u2/alerts", nil))
	if list[0].UserStatus != "snoozed" || list[0].SnoozedUntil == "" {
		t.Fatalf("after snooze: %+v", list[0])
	}

	if rec := f.do(t, http.MethodPost, "/users/u1/alerts/missing/read", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("read missing status = %d", rec.Code)
	}
}

func TestTriggerSweepAndInbox(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/admin/alerts", map[string]any{
		"title": "t", "message": "m", "created_by": "a", "visibility_type": "user", "target_ids": []string{"u1"},
	})

	rec := f.do(t, http.MethodPost, "/system/sweep", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep status = %d body = %s", rec.Code, rec.Body.String())
	}
	out := decode[sweep.Outcome](t, rec)
	if out.Delivered != 1 {
		t.Fatalf("outcome = %+v", out)
	}

	inbox := decode[[]delivery.Notice](t, f.do(t, http.MethodGet, "/users/u1/inbox", nil))
	if len(inbox) != 1 || inbox[0].Title != "t" {
		t.Fatalf("inbox = %+v", inbox)
	}

	deliveries := decode[[]map[string]any](t, f.do(t, http.MethodGet, "/admin/deliveries", nil))
	if len(deliveries) != 1 || deliveries[0]["ok"] != true {
		t.Fatalf("deliveries = %+v", deliveries)
	}

	sweeps := decode[[]sweep.Outcome](t, f.do(t, http.MethodGet, "/admin/sweeps", nil))
	if len(sweeps) != 1 {
		t.Fatalf("sweeps = %+v", sweeps)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/admin/alerts", map[string]any{
		"title": "t", "message": "m", "created_by": "a", "severity": "critical", "visibility_type": "organization",
	})

	got := decode[analytics.Summary](t, f.do(t, http.MethodGet, "/analytics", nil))
	if got.TotalAlerts != 1 || got.ActiveAlerts != 1 {
		t.Fatalf("summary = %+v", got)
	}
}
