package alert

import (
	"fmt"
	"strings"
)

// Scope names a visibility rule variant.
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeTeam         Scope = "team"
	ScopeUser         Scope = "user"
)

// Visibility is a tagged variant: exactly one of the target sets is meaningful
// depending on Scope. Construct via NewVisibility so unknown scopes fail at
// alert-creation time, never during audience resolution.
type Visibility struct {
	Scope   Scope
	TeamIDs []string
	UserIDs []string
}

// NewVisibility validates the scope tag and attaches the target set.
//
// Target ids are carried verbatim: a team id that the directory does not know
// resolves to an empty member set, and user ids are not validated for
// existence (matches downstream behavior).
func NewVisibility(scope string, targetIDs []string) (Visibility, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(scope))) {
	case ScopeOrganization:
		return Visibility{Scope: ScopeOrganization}, nil
	case ScopeTeam:
		return Visibility{Scope: ScopeTeam, TeamIDs: dedup(targetIDs)}, nil
	case ScopeUser:
		return Visibility{Scope: ScopeUser, UserIDs: dedup(targetIDs)}, nil
	default:
		return Visibility{}, fmt.Errorf("unknown visibility scope %q", scope)
	}
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
