package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"proptools/internal/models"
	"proptools/internal/store"
	"proptools/internal/utils"
)

func newToolService(t *testing.T, f *fixture) *ToolService {
	t.Helper()
	cache, err := utils.NewCache(16, time.Minute)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return NewToolService(f.store, cache, nil)
}

func TestUpvoteZillowScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	zillow := f.tool(t, "Zillow", "marketplace", true)

	n, err := svc.Upvote(ctx, f.alice, zillow.ID)
	if err != nil || n != 1 {
		t.Fatalf("U1 upvote: n=%d err=%v", n, err)
	}
	if _, err := svc.Upvote(ctx, f.alice, zillow.ID); !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("U1 second upvote: got %v, want ErrDuplicateVote", err)
	}
	got, _ := svc.GetByID(ctx, zillow.ID)
	if got.Upvotes != 1 {
		t.Fatalf("upvotes after duplicate = %d, want 1", got.Upvotes)
	}
	n, err = svc.Upvote(ctx, f.bob, zillow.ID)
	if err != nil || n != 2 {
		t.Fatalf("U2 upvote: n=%d err=%v", n, err)
	}
}

func TestUpvoteRequiresActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	tool := f.tool(t, "Redfin", "marketplace", true)

	if _, err := svc.Upvote(ctx, nil, tool.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous upvote: got %v, want ErrUnauthorized", err)
	}
	rows, _ := f.store.CountVotes(ctx, store.ToolUpvotes, tool.ID)
	if rows != 0 {
		t.Fatalf("anonymous upvote wrote %d ledger rows", rows)
	}
	if _, err := svc.Upvote(ctx, f.alice, 999); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("upvote missing tool: got %v, want ErrToolNotFound", err)
	}
}

func TestUpvoteConcurrentCounterMatchesLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	tool := f.tool(t, "Realtor.com", "marketplace", false)

	voters := []*models.Actor{f.admin, f.alice, f.bob}
	for i := 0; i < 7; i++ {
		voters = append(voters, addUser(t, f.store, fmt.Sprintf("voter%d", i), false))
	}

	var wg sync.WaitGroup
	for _, v := range voters {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(actor *models.Actor) {
				defer wg.Done()
				if _, err := svc.Upvote(ctx, actor, tool.ID); err != nil && !errors.Is(err, ErrDuplicateVote) {
					t.Errorf("upvote: %v", err)
				}
			}(v)
		}
	}
	wg.Wait()

	got, _ := svc.GetByID(ctx, tool.ID)
	rows, _ := f.store.CountVotes(ctx, store.ToolUpvotes, tool.ID)
	if got.Upvotes != len(voters) || rows != len(voters) {
		t.Fatalf("counter=%d rows=%d, want %d", got.Upvotes, rows, len(voters))
	}
}

func TestListAllOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	a := f.tool(t, "Alpha", "CRM", false)
	b := f.tool(t, "Bravo", "CRM", true)
	c := f.tool(t, "Charlie", "Analytics", false)
	for _, actor := range []*models.Actor{f.alice, f.bob, f.admin} {
		if _, err := svc.Upvote(ctx, actor, c.ID); err != nil {
			t.Fatalf("upvote: %v", err)
		}
	}
	if _, err := svc.Upvote(ctx, f.alice, a.ID); err != nil {
		t.Fatalf("upvote: %v", err)
	}

	tools, err := svc.ListAll(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(tools); i++ {
		if tools[i].Upvotes > tools[i-1].Upvotes {
			t.Fatalf("list not in non-increasing upvote order: %+v", tools)
		}
	}
	if tools[0].ID != c.ID || tools[1].ID != a.ID || tools[2].ID != b.ID {
		t.Fatalf("unexpected order: %d %d %d", tools[0].ID, tools[1].ID, tools[2].ID)
	}

	featured, _ := svc.ListAll(ctx, "featured")
	if featured[0].ID != b.ID {
		t.Fatalf("featured sort should put %d first, got %d", b.ID, featured[0].ID)
	}
	if _, err := svc.ListAll(ctx, "random"); !isValidation(err, "sort") {
		t.Fatalf("invalid sort: got %v", err)
	}

	crm, err := svc.ListByCategory(ctx, "CRM", "upvotes")
	if err != nil || len(crm) != 2 || crm[0].ID != a.ID {
		t.Fatalf("category list: %v %+v", err, crm)
	}
	if _, err := svc.ListByCategory(ctx, "  ", ""); !isValidation(err, "category") {
		t.Fatalf("blank category: got %v", err)
	}
}

func TestListCacheInvalidatedByUpvote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	tool := f.tool(t, "Zillow", "marketplace", true)

	before, _ := svc.ListAll(ctx, "upvotes")
	if before[0].Upvotes != 0 {
		t.Fatalf("unexpected initial upvotes %d", before[0].Upvotes)
	}
	if _, err := svc.Upvote(ctx, f.alice, tool.ID); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	after, _ := svc.ListAll(ctx, "upvotes")
	if after[0].Upvotes != 1 {
		t.Fatalf("cached listing not invalidated: upvotes=%d", after[0].Upvotes)
	}
}

// pausingStore 在 ListTools 读完数据后暂停，直到 release 被关闭
type pausingStore struct {
	store.Store
	once    sync.Once
	paused  chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListTools(ctx context.Context, q store.ToolQuery) ([]models.Tool, error) {
	tools, err := p.Store.ListTools(ctx, q)
	p.once.Do(func() {
		close(p.paused)
		<-p.release
	})
	return tools, err
}

func TestUpvoteDuringListingLoadIsNotMasked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tool := f.tool(t, "Zillow", "marketplace", true)
	st := &pausingStore{Store: f.store, paused: make(chan struct{}), release: make(chan struct{})}
	cache, err := utils.NewCache(16, time.Minute)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	svc := NewToolService(st, cache, nil)

	loaded := make(chan []models.Tool)
	go func() {
		tools, _ := svc.ListAll(ctx, "upvotes")
		loaded <- tools
	}()
	<-st.paused

	if n, err := svc.Upvote(ctx, f.alice, tool.ID); err != nil || n != 1 {
		t.Fatalf("upvote = %d, %v", n, err)
	}
	close(st.release)
	<-loaded

	tools, err := svc.ListAll(ctx, "upvotes")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if tools[0].Upvotes != 1 {
		t.Fatalf("listing served stale snapshot after upvote: upvotes=%d, want 1", tools[0].Upvotes)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	f.tool(t, "Zillow", "marketplace", true)
	f.tool(t, "Follow Up Boss", "CRM", false)

	for _, q := range []string{"", "   "} {
		got, err := svc.Search(ctx, q)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("search %q returned %v, want empty list", q, got)
		}
	}

	got, err := svc.Search(ctx, "zIlLoW")
	if err != nil || len(got) != 1 || got[0].Name != "Zillow" {
		t.Fatalf("case-insensitive search: %v %+v", err, got)
	}
	got, err = svc.Search(ctx, "real estate")
	if err != nil || len(got) != 2 {
		t.Fatalf("description search: %v %+v", err, got)
	}
	got, err = svc.Search(ctx, "no such tool")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("no-match search: %v %+v", err, got)
	}
}

func TestGetByIDFillsStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	tool := f.tool(t, "kvCORE", "CRM", false)
	f.review(t, f.alice, tool.ID, 5)
	f.review(t, f.bob, tool.ID, 2)

	got, err := svc.GetByID(ctx, tool.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReviewCount != 2 || got.AverageRating != 3.5 {
		t.Fatalf("stats = %d / %v", got.ReviewCount, got.AverageRating)
	}
	_, err = svc.GetByID(ctx, 404)
	if !errors.Is(err, ErrNotFound) || err.Error() != "tool not found" {
		t.Fatalf("missing tool: got %v", err)
	}
}

func TestCompare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	a := f.tool(t, "Zillow", "marketplace", true)
	b := f.tool(t, "Redfin", "marketplace", true)

	got, err := svc.Compare(ctx, []uint{b.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatalf("compare should keep request order without duplicates: %+v", got)
	}

	_, err = svc.Compare(ctx, []uint{a.ID, 77, 78})
	if !errors.Is(err, ErrNotFound) || !strings.Contains(err.Error(), "77, 78") {
		t.Fatalf("partial compare: got %v", err)
	}
	if _, err := svc.Compare(ctx, nil); !isValidation(err, "ids") {
		t.Fatalf("empty compare: got %v", err)
	}
	many := make([]uint, 11)
	for i := range many {
		many[i] = uint(i + 1)
	}
	if _, err := svc.Compare(ctx, many); !isValidation(err, "ids") {
		t.Fatalf("oversized compare: got %v", err)
	}
}

func TestCreateAndUpdateTool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newToolService(t, f)
	in := ToolInput{
		Name:        strPtr("ShowingTime"),
		Description: strPtr("Schedule <b>showings</b> with ease"),
		Website:     strPtr("https://showingtime.com"),
		Category:    strPtr("Scheduling"),
	}

	if _, err := svc.Create(ctx, nil, in); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous create: got %v", err)
	}
	if _, err := svc.Create(ctx, f.alice, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin create: got %v", err)
	}
	_, err := svc.Create(ctx, f.admin, ToolInput{Name: strPtr("X"), Website: strPtr("not a url")})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"description", "website", "category"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("missing %s error in %v", field, verr.Fields)
		}
	}

	tool, err := svc.Create(ctx, f.admin, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tool.Description != "Schedule showings with ease" {
		t.Fatalf("description not stripped: %q", tool.Description)
	}
	if _, err := svc.Upvote(ctx, f.alice, tool.ID); err != nil {
		t.Fatalf("upvote: %v", err)
	}

	updated, err := svc.Update(ctx, f.admin, tool.ID, ToolInput{Featured: boolPtr(true), Name: strPtr(" ShowingTime+ ")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Featured || updated.Name != "ShowingTime+" || updated.Upvotes != 1 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if _, err := svc.Update(ctx, f.bob, tool.ID, ToolInput{Featured: boolPtr(false)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin update: got %v", err)
	}
	if _, err := svc.Update(ctx, f.admin, 999, ToolInput{Featured: boolPtr(false)}); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("update missing: got %v", err)
	}
}

func isValidation(err error, field string) bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	_, ok := verr.Fields[field]
	return ok
}
