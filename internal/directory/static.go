package directory

import (
	"context"
	"sort"
	"sync"
)

// Static is an in-memory Directory seeded from configuration.
//
// Reads are safe for concurrent use. Reload swaps the whole snapshot so
// membership changes become visible to the next sweep without tearing.
type Static struct {
	mu         sync.RWMutex
	recipients map[string]Recipient
	teams      map[string][]string
}

// NewStatic builds a directory from recipients and optional explicit teams.
// Teams are additionally derived from each recipient's TeamID, so simple
// setups only need the recipient list.
func NewStatic(recipients []Recipient, teams map[string][]string) *Static {
	s := &Static{}
	s.Reload(recipients, teams)
	return s
}

// Reload replaces the directory contents atomically.
func (s *Static) Reload(recipients []Recipient, teams map[string][]string) {
	rm := make(map[string]Recipient, len(recipients))
	tm := make(map[string][]string, len(teams))

	for _, r := range recipients {
		if r.ID == "" {
			continue
		}
		rm[r.ID] = r
		if r.TeamID != "" {
			tm[r.TeamID] = append(tm[r.TeamID], r.ID)
		}
	}
	for teamID, members := range teams {
		if teamID == "" {
			continue
		}
		tm[teamID] = mergeMembers(tm[teamID], members)
	}

	s.mu.Lock()
	s.recipients = rm
	s.teams = tm
	s.mu.Unlock()
}

func (s *Static) AllRecipientIDs(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.recipients))
	for id := range s.recipients {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Static) TeamMembers(ctx context.Context, teamID string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.teams[teamID]
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (s *Static) Recipient(ctx context.Context, id string) (Recipient, bool, error) {
	_ = ctx
	s.mu.RLock()
	r, ok := s.recipients[id]
	s.mu.RUnlock()
	return r, ok, nil
}

func mergeMembers(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, id := range lists {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
