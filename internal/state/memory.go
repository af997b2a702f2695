package state

import (
	"context"
	"sync"
	"time"
)

const deliveryHistoryMax = 500

// Memory is the default Store: a mutex-guarded map keyed by (recipient, alert)
// plus a bounded in-memory delivery history.
type Memory struct {
	mu      sync.RWMutex
	records map[Key]State

	dmu        sync.Mutex
	deliveries []DeliveryRecord
}

func NewMemory() *Memory {
	return &Memory{records: map[Key]State{}}
}

func (m *Memory) GetOrCreate(ctx context.Context, recipientID, alertID string) (State, error) {
	_ = ctx
	k := Key{RecipientID: recipientID, AlertID: alertID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.records[k]; ok {
		return st, nil
	}
	st := New(recipientID, alertID)
	m.records[k] = st
	return st, nil
}

func (m *Memory) Upsert(ctx context.Context, st State) error {
	_ = ctx
	k := Key{RecipientID: st.RecipientID, AlertID: st.AlertID}
	m.mu.Lock()
	m.records[k] = st
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, recipientID, alertID string) (State, bool, error) {
	_ = ctx
	m.mu.RLock()
	st, ok := m.records[Key{RecipientID: recipientID, AlertID: alertID}]
	m.mu.RUnlock()
	return st, ok, nil
}

func (m *Memory) StampReminder(ctx context.Context, recipientID, alertID string, at time.Time) error {
	_ = ctx
	k := Key{RecipientID: recipientID, AlertID: alertID}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.records[k]
	if !ok {
		st = New(recipientID, alertID)
	}
	st.LastReminderSent = at
	m.records[k] = st
	return nil
}

func (m *Memory) ExpireSnooze(ctx context.Context, recipientID, alertID string) error {
	_ = ctx
	k := Key{RecipientID: recipientID, AlertID: alertID}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.records[k]
	if !ok || st.Status != StatusSnoozed {
		return nil
	}
	st.Status = StatusUnread
	st.SnoozedUntil = time.Time{}
	m.records[k] = st
	return nil
}

func (m *Memory) All(ctx context.Context) ([]State, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]State, 0, len(m.records))
	for _, st := range m.records {
		out = append(out, st)
	}
	return out, nil
}

func (m *Memory) AppendDelivery(ctx context.Context, rec DeliveryRecord) error {
	_ = ctx
	m.dmu.Lock()
	m.deliveries = append(m.deliveries, rec)
	if len(m.deliveries) > deliveryHistoryMax {
		m.deliveries = m.deliveries[len(m.deliveries)-deliveryHistoryMax:]
	}
	m.dmu.Unlock()
	return nil
}

func (m *Memory) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	_ = ctx
	m.dmu.Lock()
	defer m.dmu.Unlock()
	n := len(m.deliveries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]DeliveryRecord, n)
	// newest first
	for i := 0; i < n; i++ {
		out[i] = m.deliveries[len(m.deliveries)-1-i]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
