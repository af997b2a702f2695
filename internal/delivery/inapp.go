package delivery

import (
	"context"
	"sync"
	"time"

	"alertd/internal/alert"
	"alertd/internal/directory"
)

const inboxMaxPerRecipient = 200

// Notice is one in-app inbox entry.
type Notice struct {
	AlertID  string    `json:"alert_id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	SentAt   time.Time `json:"sent_at"`
}

// InApp keeps a bounded in-memory inbox per recipient. It always succeeds,
// which makes it the default channel and a convenient test double in one.
type InApp struct {
	mu      sync.RWMutex
	inboxes map[string][]Notice
}

func NewInApp() *InApp {
	return &InApp{inboxes: map[string][]Notice{}}
}

func (c *InApp) Name() string { return "inapp" }

func (c *InApp) Send(ctx context.Context, a alert.Alert, rcpt directory.Recipient) error {
	_ = ctx
	n := Notice{
		AlertID:  a.ID,
		Title:    a.Title,
		Message:  a.Message,
		Severity: string(a.Severity),
		SentAt:   time.Now(),
	}
	c.mu.Lock()
	box := append(c.inboxes[rcpt.ID], n)
	if len(box) > inboxMaxPerRecipient {
		box = box[len(box)-inboxMaxPerRecipient:]
	}
	c.inboxes[rcpt.ID] = box
	c.mu.Unlock()
	return nil
}

// Inbox snapshots a recipient's inbox, newest last.
func (c *InApp) Inbox(recipientID string) []Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Notice(nil), c.inboxes[recipientID]...)
}
