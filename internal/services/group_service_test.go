package services

import (
	"context"
	"errors"
	"testing"
)

func TestGroupLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewGroupService(f.store, nil)

	if _, err := svc.Create(ctx, nil, CreateGroupInput{Name: "Austin Agents"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous create: got %v", err)
	}
	if _, err := svc.Create(ctx, f.alice, CreateGroupInput{Name: "ab"}); !isValidation(err, "name") {
		t.Fatalf("short name: got %v", err)
	}

	g, err := svc.Create(ctx, f.alice, CreateGroupInput{Name: " Austin Agents ", Description: "Central Texas"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Name != "Austin Agents" || g.MemberCount != 1 {
		t.Fatalf("creator should auto-join: %+v", g)
	}
	if _, err := svc.Create(ctx, f.bob, CreateGroupInput{Name: "Austin Agents"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate name: got %v", err)
	}

	if _, err := svc.Join(ctx, f.alice, g.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("creator join: got %v, want ErrAlreadyMember", err)
	}
	n, err := svc.Join(ctx, f.bob, g.ID)
	if err != nil || n != 2 {
		t.Fatalf("bob join: n=%d err=%v", n, err)
	}
	if _, err := svc.Join(ctx, f.bob, 999); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("join missing group: got %v", err)
	}

	small, err := svc.Create(ctx, f.bob, CreateGroupInput{Name: "Dallas Brokers"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	groups, err := svc.List(ctx)
	if err != nil || len(groups) != 2 || groups[0].ID != g.ID || groups[1].ID != small.ID {
		t.Fatalf("list: %v %+v", err, groups)
	}
	got, err := svc.Get(ctx, g.ID)
	if err != nil || got.MemberCount != 2 {
		t.Fatalf("get: %v %+v", err, got)
	}
	if _, err := svc.Get(ctx, 999); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("get missing: got %v", err)
	}
}
