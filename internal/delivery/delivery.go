// Package delivery turns an (alert, recipient) pair into a concrete send over
// some channel. The core treats every channel as a success/failure boundary:
// no retries live here, and a failed send only matters to the sweeper as
// "state unchanged, try again next sweep".
package delivery

import (
	"context"
	"errors"

	"alertd/internal/alert"
	"alertd/internal/directory"
)

var (
	ErrUnknownChannel   = errors.New("unknown delivery channel")
	ErrUnknownRecipient = errors.New("recipient not in directory")
	ErrNotRoutable      = errors.New("recipient not routable on channel")
)

// Channel delivers one alert to one recipient. Implementations own their own
// timeouts; the caller only interprets nil/non-nil.
type Channel interface {
	Name() string
	Send(ctx context.Context, a alert.Alert, rcpt directory.Recipient) error
}
