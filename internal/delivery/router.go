package delivery

import (
	"context"
	"fmt"

	"alertd/internal/alert"
	"alertd/internal/directory"
)

// DefaultChannel is used when an alert does not name a channel.
const DefaultChannel = "inapp"

// Router looks up the recipient's identity and hands the send to the channel
// the alert names.
type Router struct {
	dir      directory.Directory
	channels map[string]Channel
}

func NewRouter(dir directory.Directory, channels ...Channel) *Router {
	m := make(map[string]Channel, len(channels))
	for _, c := range channels {
		if c == nil {
			continue
		}
		m[c.Name()] = c
	}
	return &Router{dir: dir, channels: m}
}

// Channels returns the registered channel names.
func (r *Router) Channels() []string {
	out := make([]string, 0, len(r.channels))
	for name := range r.channels {
		out = append(out, name)
	}
	return out
}

// Has reports whether a channel name is registered. Alert creation uses this
// to fail fast on unroutable channels.
func (r *Router) Has(name string) bool {
	if name == "" {
		name = DefaultChannel
	}
	_, ok := r.channels[name]
	return ok
}

// Send delivers a to recipientID over the alert's channel.
func (r *Router) Send(ctx context.Context, a alert.Alert, recipientID string) error {
	name := a.Channel
	if name == "" {
		name = DefaultChannel
	}
	ch, ok := r.channels[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}

	rcpt, found, err := r.dir.Recipient(ctx, recipientID)
	if err != nil {
		return err
	}
	if !found {
		// User-scoped rules may carry ids the directory never heard of; those
		// sends fail here and simply stay eligible, per the resolver contract.
		return fmt.Errorf("%w: %q", ErrUnknownRecipient, recipientID)
	}
	return ch.Send(ctx, a, rcpt)
}
