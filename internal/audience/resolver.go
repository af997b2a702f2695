// Package audience maps an alert's visibility rule to the concrete set of
// recipient ids it targets. Resolution is pure given a directory snapshot and
// is recomputed on every sweep, so membership changes between sweeps are
// picked up naturally.
package audience

import (
	"context"

	"alertd/internal/alert"
	"alertd/internal/directory"
)

// Set is a resolved audience.
type Set map[string]struct{}

func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Resolve produces the recipient ids targeted by vis.
//
//   - organization: every id the directory knows.
//   - team: union of member sets; unknown teams contribute nothing.
//   - user: the explicit set verbatim, without existence validation.
//
// The only errors are directory lookup failures; the rule itself was
// validated at construction time.
func Resolve(ctx context.Context, vis alert.Visibility, dir directory.Directory) (Set, error) {
	switch vis.Scope {
	case alert.ScopeOrganization:
		return resolveOrganization(ctx, dir)
	case alert.ScopeTeam:
		return resolveTeams(ctx, vis.TeamIDs, dir)
	case alert.ScopeUser:
		return resolveUsers(vis.UserIDs), nil
	default:
		// NewVisibility is the only constructor; an unknown tag here means a
		// caller bypassed it.
		panic("audience: invalid visibility scope " + string(vis.Scope))
	}
}

func resolveOrganization(ctx context.Context, dir directory.Directory) (Set, error) {
	ids, err := dir.AllRecipientIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make(Set, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func resolveTeams(ctx context.Context, teamIDs []string, dir directory.Directory) (Set, error) {
	out := Set{}
	for _, teamID := range teamIDs {
		members, err := dir.TeamMembers(ctx, teamID)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func resolveUsers(userIDs []string) Set {
	out := make(Set, len(userIDs))
	for _, id := range userIDs {
		out[id] = struct{}{}
	}
	return out
}
