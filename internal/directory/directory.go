// Package directory provides the read-only identity lookup the sweeper and
// the audience resolver consume: recipient id -> identity, team id -> member
// set. The core never writes through this interface.
package directory

import "context"

// Recipient is a notification target known to the organization.
type Recipient struct {
	ID             string
	Name           string
	Email          string
	TeamID         string
	TelegramChatID int64 // 0 when the recipient has no telegram binding
}

type Directory interface {
	// AllRecipientIDs returns every recipient id known to the directory.
	AllRecipientIDs(ctx context.Context) ([]string, error)
	// TeamMembers returns the member ids of a team.
	// Unknown team ids yield an empty set, not an error.
	TeamMembers(ctx context.Context, teamID string) ([]string, error)
	// Recipient looks up a single identity. ok is false for unknown ids.
	Recipient(ctx context.Context, id string) (Recipient, bool, error)
}
