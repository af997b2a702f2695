package sweep

import (
	"context"
	"errors"
	"time"

	"alertd/internal/alert"
)

// ErrSweepRunning is returned when a trigger fires while the previous sweep is
// still writing state. Sweeps are single-flight; the trigger simply skips.
var ErrSweepRunning = errors.New("sweep already running")

// Config controls the periodic sweep.
//
// Schedule is a cron spec or "@every <duration>" descriptor (robfig/cron
// syntax). Timezone is an IANA name; it positions both the cron trigger and
// the snooze-until-next-midnight computation.
type Config struct {
	Enabled     bool
	Schedule    string
	Workers     int
	RatePerSec  int
	HistorySize int
	Timezone    string
}

// Sender is the delivery capability the sweeper invokes. A non-nil error means
// "not delivered"; the sweeper records no state change for that pair.
type Sender interface {
	Send(ctx context.Context, a alert.Alert, recipientID string) error
}

// Outcome summarizes one sweep pass.
type Outcome struct {
	StartedAt time.Time     `json:"started_at"`
	Took      time.Duration `json:"took"`
	Alerts    int           `json:"alerts"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}
