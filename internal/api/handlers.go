package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"alertd/internal/alert"
	"alertd/internal/analytics"
	"alertd/internal/audience"
	"alertd/internal/delivery"
	"alertd/internal/directory"
	"alertd/internal/eventbus"
	"alertd/internal/state"
	"alertd/internal/sweep"
	logx "alertd/pkg/logx"
)

type Handlers struct {
	registry alert.Registry
	store    state.Store
	dir      directory.Directory
	router   *delivery.Router
	inapp    *delivery.InApp // nil when the in-app channel is not configured
	sweeper  *sweep.Service
	engine   *analytics.Engine
	bus      eventbus.Bus // optional
	log      logx.Logger
}

func NewHandlers(registry alert.Registry, store state.Store, dir directory.Directory, router *delivery.Router, inapp *delivery.InApp, sweeper *sweep.Service, engine *analytics.Engine, bus eventbus.Bus, log logx.Logger) *Handlers {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handlers{
		registry: registry,
		store:    store,
		dir:      dir,
		router:   router,
		inapp:    inapp,
		sweeper:  sweeper,
		engine:   engine,
		bus:      bus,
		log:      log,
	}
}

func (h *Handlers) publish(eventType string, data any) {
	if h.bus != nil {
		h.bus.Publish(eventbus.Event{Type: eventType, Data: data})
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": time.Now().Format(time.RFC3339)})
}

// ---- Admin: alerts ----

type createAlertRequest struct {
	Title            string   `json:"title"`
	Message          string   `json:"message"`
	Severity         string   `json:"severity"`
	Channel          string   `json:"channel,omitempty"`
	CreatedBy        string   `json:"created_by"`
	VisibilityType   string   `json:"visibility_type"`
	TargetIDs        []string `json:"target_ids,omitempty"`
	StartAt          string   `json:"start_at,omitempty"`
	ExpiresAt        string   `json:"expires_at,omitempty"`
	ReminderEvery    string   `json:"reminder_every,omitempty"`
	RemindersEnabled *bool    `json:"reminders_enabled,omitempty"`
}

type alertResponse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Message          string   `json:"message"`
	Severity         string   `json:"severity"`
	Channel          string   `json:"channel"`
	CreatedBy        string   `json:"created_by"`
	VisibilityType   string   `json:"visibility_type"`
	TargetIDs        []string `json:"target_ids,omitempty"`
	StartAt          string   `json:"start_at"`
	ExpiresAt        string   `json:"expires_at,omitempty"`
	ReminderEvery    string   `json:"reminder_every"`
	RemindersEnabled bool     `json:"reminders_enabled"`
	Status           string   `json:"status"`
}

func toAlertResponse(a alert.Alert) alertResponse {
	resp := alertResponse{
		ID:               a.ID,
		Title:            a.Title,
		Message:          a.Message,
		Severity:         string(a.Severity),
		Channel:          a.Channel,
		CreatedBy:        a.CreatedBy,
		VisibilityType:   string(a.Visibility.Scope),
		StartAt:          a.StartAt.Format(time.RFC3339),
		ReminderEvery:    a.ReminderEvery.String(),
		RemindersEnabled: a.RemindersEnabled,
		Status:           string(a.Status),
	}
	switch a.Visibility.Scope {
	case alert.ScopeTeam:
		resp.TargetIDs = a.Visibility.TeamIDs
	case alert.ScopeUser:
		resp.TargetIDs = a.Visibility.UserIDs
	}
	if !a.ExpiresAt.IsZero() {
		resp.ExpiresAt = a.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Title == "" || req.Message == "" || req.CreatedBy == "" {
		writeError(w, http.StatusBadRequest, "title, message and created_by are required")
		return
	}

	sev := alert.SeverityInfo
	if req.Severity != "" {
		var err error
		if sev, err = alert.ParseSeverity(req.Severity); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	// Unknown visibility variants fail here, at creation time; resolution
	// never sees them.
	vis, err := alert.NewVisibility(req.VisibilityType, req.TargetIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.router != nil && !h.router.Has(req.Channel) {
		writeError(w, http.StatusBadRequest, "unknown delivery channel: "+req.Channel)
		return
	}

	a := alert.Alert{
		Title:            req.Title,
		Message:          req.Message,
		Severity:         sev,
		Channel:          req.Channel,
		CreatedBy:        req.CreatedBy,
		Visibility:       vis,
		RemindersEnabled: true,
	}
	if req.RemindersEnabled != nil {
		a.RemindersEnabled = *req.RemindersEnabled
	}
	if req.StartAt != "" {
		t, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_at: "+err.Error())
			return
		}
		a.StartAt = t
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expires_at: "+err.Error())
			return
		}
		a.ExpiresAt = t
	}
	if req.ReminderEvery != "" {
		d, err := time.ParseDuration(req.ReminderEvery)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "reminder_every must be a positive duration")
			return
		}
		a.ReminderEvery = d
	}

	created, err := h.registry.Create(r.Context(), a)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.publish(eventbus.TypeAlertCreated, created.ID)
	writeJSON(w, http.StatusCreated, toAlertResponse(created))
}

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	var f alert.ListFilter
	if v := r.URL.Query().Get("severity"); v != "" {
		sev, err := alert.ParseSeverity(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Severity = sev
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := alert.ParseStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = st
	}

	alerts, err := h.registry.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type updateAlertRequest struct {
	Title            *string `json:"title,omitempty"`
	Message          *string `json:"message,omitempty"`
	Severity         *string `json:"severity,omitempty"`
	Status           *string `json:"status,omitempty"`
	RemindersEnabled *bool   `json:"reminders_enabled,omitempty"`
	ExpiresAt        *string `json:"expires_at,omitempty"`
	ReminderEvery    *string `json:"reminder_every,omitempty"`
}

func (h *Handlers) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "alertID")

	var req updateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	var upd alert.Update
	upd.Title = req.Title
	upd.Message = req.Message
	upd.RemindersEnabled = req.RemindersEnabled
	if req.Severity != nil {
		sev, err := alert.ParseSeverity(*req.Severity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.Severity = &sev
	}
	if req.Status != nil {
		st, err := alert.ParseStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.Status = &st
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expires_at: "+err.Error())
			return
		}
		upd.ExpiresAt = &t
	}
	if req.ReminderEvery != nil {
		d, err := time.ParseDuration(*req.ReminderEvery)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "reminder_every must be a positive duration")
			return
		}
		upd.ReminderEvery = &d
	}

	a, err := h.registry.Update(r.Context(), id, upd)
	if errors.Is(err, alert.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponse(a))
}

func (h *Handlers) ArchiveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "alertID")
	err := h.registry.Archive(r.Context(), id)
	if errors.Is(err, alert.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.publish(eventbus.TypeAlertArchived, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "alert archived"})
}

func (h *Handlers) RecentDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := h.store.RecentDeliveries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type deliveryResponse struct {
		At          string `json:"at"`
		AlertID     string `json:"alert_id"`
		RecipientID string `json:"recipient_id"`
		Channel     string `json:"channel"`
		OK          bool   `json:"ok"`
		Error       string `json:"error,omitempty"`
	}
	out := make([]deliveryResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, deliveryResponse{
			At:          rec.At.Format(time.RFC3339),
			AlertID:     rec.AlertID,
			RecipientID: rec.RecipientID,
			Channel:     rec.Channel,
			OK:          rec.OK,
			Error:       rec.Error,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) SweepHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sweeper.History())
}

// ---- Recipient-facing ----

type userAlertResponse struct {
	alertResponse
	UserStatus   string `json:"user_status"`
	SnoozedUntil string `json:"snoozed_until,omitempty"`
	ReadAt       string `json:"read_at,omitempty"`
}

// UserAlerts lists the live alerts whose audience includes the recipient,
// joined with the recipient's own notification state.
func (h *Handlers) UserAlerts(w http.ResponseWriter, r *http.Request) {
	recipientID := chi.URLParam(r, "recipientID")
	now := time.Now()

	alerts, err := h.registry.Active(r.Context(), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]userAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		aud, err := audience.Resolve(r.Context(), a.Visibility, h.dir)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !aud.Contains(recipientID) {
			continue
		}
		st, err := h.store.GetOrCreate(r.Context(), recipientID, a.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		item := userAlertResponse{alertResponse: toAlertResponse(a), UserStatus: string(st.Status)}
		if !st.SnoozedUntil.IsZero() {
			item.SnoozedUntil = st.SnoozedUntil.Format(time.RFC3339)
		}
		if !st.ReadAt.IsZero() {
			item.ReadAt = st.ReadAt.Format(time.RFC3339)
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) UserInbox(w http.ResponseWriter, r *http.Request) {
	if h.inapp == nil {
		writeError(w, http.StatusNotFound, "in-app channel not configured")
		return
	}
	recipientID := chi.URLParam(r, "recipientID")
	writeJSON(w, http.StatusOK, h.inapp.Inbox(recipientID))
}

func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	recipientID := chi.URLParam(r, "recipientID")
	alertID := chi.URLParam(r, "alertID")

	if _, err := h.registry.Get(r.Context(), alertID); errors.Is(err, alert.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := state.MarkRead(r.Context(), h.store, recipientID, alertID, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "alert marked as read"})
}

func (h *Handlers) Snooze(w http.ResponseWriter, r *http.Request) {
	recipientID := chi.URLParam(r, "recipientID")
	alertID := chi.URLParam(r, "alertID")

	if _, err := h.registry.Get(r.Context(), alertID); errors.Is(err, alert.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := state.Snooze(r.Context(), h.store, recipientID, alertID, time.Now(), h.sweeper.Location()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "alert snoozed until tomorrow"})
}

// ---- System ----

func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	sum, err := h.engine.Summary(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handlers) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	out, err := h.sweeper.Sweep(r.Context())
	if errors.Is(err, sweep.ErrSweepRunning) {
		writeError(w, http.StatusConflict, "sweep already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}
