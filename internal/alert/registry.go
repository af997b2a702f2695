package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("alert not found")

// Registry holds alert records and answers "all live alerts as of now".
// It is the only writer of alert status and timing fields.
type Registry interface {
	Create(ctx context.Context, a Alert) (Alert, error)
	Get(ctx context.Context, id string) (Alert, error)
	List(ctx context.Context, f ListFilter) ([]Alert, error)
	Update(ctx context.Context, id string, upd Update) (Alert, error)
	Archive(ctx context.Context, id string) error
	Active(ctx context.Context, now time.Time) ([]Alert, error)
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Severity Severity
	Status   Status
}

// Update carries partial mutations; nil fields are left untouched.
type Update struct {
	Title            *string
	Message          *string
	Severity         *Severity
	Status           *Status
	RemindersEnabled *bool
	ExpiresAt        *time.Time
	ReminderEvery    *time.Duration
}

// MemoryRegistry is the in-process Registry. Durable alert storage is out of
// scope; the registry lives and dies with the daemon.
type MemoryRegistry struct {
	mu     sync.RWMutex
	alerts map[string]Alert
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{alerts: map[string]Alert{}}
}

// Create fills defaults (id, start, cadence, status) and stores the alert.
func (r *MemoryRegistry) Create(ctx context.Context, a Alert) (Alert, error) {
	_ = ctx
	now := time.Now()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.StartAt.IsZero() {
		a.StartAt = now
	}
	if a.ReminderEvery <= 0 {
		a.ReminderEvery = DefaultReminderEvery
	}
	if a.Severity == "" {
		a.Severity = SeverityInfo
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.Visibility.Scope == "" {
		a.Visibility = Visibility{Scope: ScopeOrganization}
	}

	r.mu.Lock()
	r.alerts[a.ID] = a
	r.mu.Unlock()
	return a, nil
}

func (r *MemoryRegistry) Get(ctx context.Context, id string) (Alert, error) {
	_ = ctx
	r.mu.RLock()
	a, ok := r.alerts[id]
	r.mu.RUnlock()
	if !ok {
		return Alert{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRegistry) List(ctx context.Context, f ListFilter) ([]Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRegistry) Update(ctx context.Context, id string, upd Update) (Alert, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	if upd.Title != nil {
		a.Title = *upd.Title
	}
	if upd.Message != nil {
		a.Message = *upd.Message
	}
	if upd.Severity != nil {
		a.Severity = *upd.Severity
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	if upd.RemindersEnabled != nil {
		a.RemindersEnabled = *upd.RemindersEnabled
	}
	if upd.ExpiresAt != nil {
		a.ExpiresAt = *upd.ExpiresAt
	}
	if upd.ReminderEvery != nil && *upd.ReminderEvery > 0 {
		a.ReminderEvery = *upd.ReminderEvery
	}
	r.alerts[id] = a
	return a, nil
}

func (r *MemoryRegistry) Archive(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = StatusArchived
	r.alerts[id] = a
	return nil
}

// Active returns alerts that are live at now. Callers that only want
// remindable alerts must additionally check RemindersEnabled.
func (r *MemoryRegistry) Active(ctx context.Context, now time.Time) ([]Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if a.Live(now) {
			out = append(out, a)
		}
	}
	return out, nil
}
