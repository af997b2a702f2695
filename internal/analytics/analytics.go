// Package analytics is a read-only fold over the alert registry and the
// notification state store. It never mutates anything.
package analytics

import (
	"context"
	"time"

	"alertd/internal/alert"
	"alertd/internal/state"
)

// Summary is a point-in-time snapshot of system-wide counts.
type Summary struct {
	TotalAlerts   int                    `json:"total_alerts"`
	ActiveAlerts  int                    `json:"active_alerts"`
	ExpiredAlerts int                    `json:"expired_alerts"`
	BySeverity    map[alert.Severity]int `json:"alerts_by_severity"`
	Delivery      DeliveryStats          `json:"delivery_stats"`
}

// DeliveryStats counts notification records by status. "Delivered" counts
// every record ever observed (each one exists because a sweep or a recipient
// action touched the pair).
type DeliveryStats struct {
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Snoozed   int `json:"snoozed"`
}

type Engine struct {
	registry alert.Registry
	store    state.Store
}

func New(registry alert.Registry, store state.Store) *Engine {
	return &Engine{registry: registry, store: store}
}

func (e *Engine) Summary(ctx context.Context, now time.Time) (Summary, error) {
	alerts, err := e.registry.List(ctx, alert.ListFilter{})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{BySeverity: map[alert.Severity]int{
		alert.SeverityInfo:     0,
		alert.SeverityWarning:  0,
		alert.SeverityCritical: 0,
	}}
	sum.TotalAlerts = len(alerts)
	for _, a := range alerts {
		sum.BySeverity[a.Severity]++
		if a.Live(now) {
			sum.ActiveAlerts++
		}
		if a.Status == alert.StatusExpired {
			sum.ExpiredAlerts++
		}
	}

	states, err := e.store.All(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, st := range states {
		sum.Delivery.Delivered++
		switch st.Status {
		case state.StatusRead:
			sum.Delivery.Read++
		case state.StatusSnoozed:
			sum.Delivery.Snoozed++
		}
	}
	return sum, nil
}
