package directory

import (
	"context"
	"testing"
)

func TestStaticTeamsDerivedAndMerged(t *testing.T) {
	s := NewStatic([]Recipient{
		{ID: "u1", TeamID: "eng"},
		{ID: "u2", TeamID: "eng"},
		{ID: "u3", TeamID: "ops"},
	}, map[string][]string{
		"oncall": {"u1", "u3"},
		"eng":    {"u3"}, // explicit member on top of the derived set
	})
	ctx := context.Background()

	members, err := s.TeamMembers(ctx, "eng")
	if err != nil {
		t.Fatalf("TeamMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("eng = %v", members)
	}

	members, err = s.TeamMembers(ctx, "oncall")
	if err != nil {
		t.Fatalf("TeamMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("oncall = %v", members)
	}

	members, err = s.TeamMembers(ctx, "nope")
	if err != nil {
		t.Fatalf("TeamMembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("unknown team = %v", members)
	}
}

func TestStaticLookups(t *testing.T) {
	s := NewStatic([]Recipient{
		{ID: "u1", Name: "Alice", Email: "alice@example.com"},
		{ID: "u2"},
	}, nil)
	ctx := context.Background()

	ids, err := s.AllRecipientIDs(ctx)
	if err != nil {
		t.Fatalf("AllRecipientIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}

	r, ok, err := s.Recipient(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("Recipient: ok=%v err=%v", ok, err)
	}
	if r.Name != "Alice" {
		t.Fatalf("recipient = %+v", r)
	}
	if _, ok, _ := s.Recipient(ctx, "ghost"); ok {
		t.Fatal("unexpected recipient")
	}
}
