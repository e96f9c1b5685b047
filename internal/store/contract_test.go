package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"proptools/internal/models"
	"proptools/internal/store"
)

// runContract exercises the behaviour every Store must share.
// newStore must return an empty store.
func runContract(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("ZillowScenario", func(t *testing.T) { testZillowScenario(t, newStore(t)) })
	t.Run("ConcurrentVotes", func(t *testing.T) { testConcurrentVotes(t, newStore(t)) })
	t.Run("VoteMissingTarget", func(t *testing.T) { testVoteMissingTarget(t, newStore(t)) })
	t.Run("HelpfulVotes", func(t *testing.T) { testHelpfulVotes(t, newStore(t)) })
	t.Run("ListOrdering", func(t *testing.T) { testListOrdering(t, newStore(t)) })
	t.Run("SearchEscapesWildcards", func(t *testing.T) { testSearchEscapesWildcards(t, newStore(t)) })
	t.Run("DuplicateReview", func(t *testing.T) { testDuplicateReview(t, newStore(t)) })
	t.Run("DeleteReviewRemovesVotes", func(t *testing.T) { testDeleteReviewRemovesVotes(t, newStore(t)) })
	t.Run("VerificationTokenSingleUse", func(t *testing.T) { testVerificationTokenSingleUse(t, newStore(t)) })
	t.Run("DuplicateUser", func(t *testing.T) { testDuplicateUser(t, newStore(t)) })
}

func mustUser(t *testing.T, st store.Store, name string) models.User {
	t.Helper()
	u := models.User{
		Username:  name,
		Email:     name + "@example.com",
		Password:  "x",
		FirstName: "First",
		LastName:  "Last",
	}
	if err := st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func mustTool(t *testing.T, st store.Store, name string, category string, upvotes int, featured bool) models.Tool {
	t.Helper()
	tool := models.Tool{
		Name:        name,
		Description: name + " helps agents close deals",
		Website:     "https://example.com/" + name,
		Category:    category,
		Featured:    featured,
	}
	if err := st.CreateTool(context.Background(), &tool); err != nil {
		t.Fatalf("create tool %s: %v", name, err)
	}
	for i := 0; i < upvotes; i++ {
		u := mustUser(t, st, fmt.Sprintf("%s-fan-%d", name, i))
		if _, err := st.CastVote(context.Background(), store.ToolUpvotes, u.ID, tool.ID); err != nil {
			t.Fatalf("seed upvote: %v", err)
		}
	}
	got, err := st.GetTool(context.Background(), tool.ID)
	if err != nil {
		t.Fatalf("get tool: %v", err)
	}
	return got
}

func assertCounter(t *testing.T, st store.Store, l store.Ledger, targetID uint, want int) {
	t.Helper()
	rows, err := st.CountVotes(context.Background(), l, targetID)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if rows != want {
		t.Fatalf("%s ledger rows for %d = %d, want %d", l.Name, targetID, rows, want)
	}
	_, after, err := st.ReconcileCounter(context.Background(), l, targetID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if after != want {
		t.Fatalf("%s recount for %d = %d, want %d", l.Name, targetID, after, want)
	}
}

func testZillowScenario(t *testing.T, st store.Store) {
	ctx := context.Background()
	zillow := mustTool(t, st, "Zillow", "marketplace", 0, true)
	u1 := mustUser(t, st, "u1")
	u2 := mustUser(t, st, "u2")

	n, err := st.CastVote(ctx, store.ToolUpvotes, u1.ID, zillow.ID)
	if err != nil {
		t.Fatalf("first upvote: %v", err)
	}
	if n != 1 {
		t.Fatalf("counter after U1 = %d, want 1", n)
	}

	if _, err := st.CastVote(ctx, store.ToolUpvotes, u1.ID, zillow.ID); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("second upvote by U1: got %v, want ErrDuplicate", err)
	}
	got, _ := st.GetTool(ctx, zillow.ID)
	if got.Upvotes != 1 {
		t.Fatalf("counter after duplicate = %d, want 1", got.Upvotes)
	}

	n, err = st.CastVote(ctx, store.ToolUpvotes, u2.ID, zillow.ID)
	if err != nil {
		t.Fatalf("U2 upvote: %v", err)
	}
	if n != 2 {
		t.Fatalf("counter after U2 = %d, want 2", n)
	}
	assertCounter(t, st, store.ToolUpvotes, zillow.ID, 2)
}

func testConcurrentVotes(t *testing.T, st store.Store) {
	ctx := context.Background()
	tool := mustTool(t, st, "Redfin", "marketplace", 0, false)

	const users = 5
	const attemptsPerUser = 6
	voters := make([]models.User, users)
	for i := range voters {
		voters[i] = mustUser(t, st, fmt.Sprintf("racer%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for _, v := range voters {
		for i := 0; i < attemptsPerUser; i++ {
			wg.Add(1)
			go func(userID uint) {
				defer wg.Done()
				<-start
				_, err := st.CastVote(ctx, store.ToolUpvotes, userID, tool.ID)
				switch {
				case err == nil:
					mu.Lock()
					successes++
					mu.Unlock()
				case errors.Is(err, store.ErrDuplicate):
				default:
					t.Errorf("unexpected vote error: %v", err)
				}
			}(v.ID)
		}
	}
	close(start)
	wg.Wait()

	if successes != users {
		t.Fatalf("successful votes = %d, want %d", successes, users)
	}
	got, err := st.GetTool(ctx, tool.ID)
	if err != nil {
		t.Fatalf("get tool: %v", err)
	}
	if got.Upvotes != users {
		t.Fatalf("counter = %d, want %d", got.Upvotes, users)
	}
	assertCounter(t, st, store.ToolUpvotes, tool.ID, users)
}

func testVoteMissingTarget(t *testing.T, st store.Store) {
	u := mustUser(t, st, "lost")
	_, err := st.CastVote(context.Background(), store.ToolUpvotes, u.ID, 999999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("vote on missing tool: got %v, want ErrNotFound", err)
	}
	rows, err := st.CountVotes(context.Background(), store.ToolUpvotes, 999999)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if rows != 0 {
		t.Fatalf("ledger rows for missing tool = %d, want 0", rows)
	}
}

func testHelpfulVotes(t *testing.T, st store.Store) {
	ctx := context.Background()
	tool := mustTool(t, st, "Follow Up Boss", "CRM", 0, false)
	author := mustUser(t, st, "author")
	reader := mustUser(t, st, "reader")

	review := models.Review{UserID: author.ID, ToolID: tool.ID, Rating: 4, Content: "Solid CRM for small teams"}
	if err := st.CreateReview(ctx, &review); err != nil {
		t.Fatalf("create review: %v", err)
	}
	if review.User.Username != "author" {
		t.Fatalf("review author not loaded: %+v", review.User)
	}

	if n, err := st.CastVote(ctx, store.ReviewHelpful, reader.ID, review.ID); err != nil || n != 1 {
		t.Fatalf("helpful vote: n=%d err=%v", n, err)
	}
	if _, err := st.CastVote(ctx, store.ReviewHelpful, reader.ID, review.ID); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate helpful vote: got %v, want ErrDuplicate", err)
	}
	got, err := st.GetReview(ctx, review.ID)
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if got.HelpfulCount != 1 {
		t.Fatalf("helpful_count = %d, want 1", got.HelpfulCount)
	}
	assertCounter(t, st, store.ReviewHelpful, review.ID, 1)
}

func testListOrdering(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := mustTool(t, st, "Alpha", "CRM", 1, false)
	b := mustTool(t, st, "Bravo", "CRM", 3, false)
	c := mustTool(t, st, "Charlie", "Analytics", 2, true)
	time.Sleep(5 * time.Millisecond)
	d := mustTool(t, st, "Delta", "CRM", 0, true)

	byUpvotes, err := st.ListTools(ctx, store.ToolQuery{Sort: store.SortUpvotes})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertIDs(t, "upvotes", byUpvotes, b.ID, c.ID, a.ID, d.ID)
	for i := 1; i < len(byUpvotes); i++ {
		if byUpvotes[i].Upvotes > byUpvotes[i-1].Upvotes {
			t.Fatalf("upvote order increases at %d", i)
		}
	}

	byFeatured, err := st.ListTools(ctx, store.ToolQuery{Sort: store.SortFeatured})
	if err != nil {
		t.Fatalf("list featured: %v", err)
	}
	assertIDs(t, "featured", byFeatured, c.ID, d.ID, b.ID, a.ID)

	byNewest, err := st.ListTools(ctx, store.ToolQuery{Sort: store.SortNewest})
	if err != nil {
		t.Fatalf("list newest: %v", err)
	}
	if byNewest[0].ID != d.ID {
		t.Fatalf("newest first = %d, want %d", byNewest[0].ID, d.ID)
	}

	crm, err := st.ListTools(ctx, store.ToolQuery{Category: "CRM"})
	if err != nil {
		t.Fatalf("list category: %v", err)
	}
	assertIDs(t, "category", crm, b.ID, a.ID, d.ID)

	cats, err := st.ListCategories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 2 || cats[0].Category != "Analytics" || cats[1].Count != 3 {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func testSearchEscapesWildcards(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustTool(t, st, "ShowingTime", "Transaction Management", 0, false)
	mustTool(t, st, "Matterport", "Virtual Tours", 0, false)

	got, err := st.ListTools(ctx, store.ToolQuery{Search: "showing"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ShowingTime" {
		t.Fatalf("case-insensitive name search: %+v", got)
	}

	got, err = st.ListTools(ctx, store.ToolQuery{Search: "CLOSE DEALS"})
	if err != nil {
		t.Fatalf("search description: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("description search returned %d tools, want 2", len(got))
	}

	got, err = st.ListTools(ctx, store.ToolQuery{Search: "%"})
	if err != nil {
		t.Fatalf("search wildcard: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("literal %% matched %d tools", len(got))
	}
}

func testDuplicateReview(t *testing.T, st store.Store) {
	ctx := context.Background()
	tool := mustTool(t, st, "kvCORE", "CRM", 0, false)
	u := mustUser(t, st, "twice")
	first := models.Review{UserID: u.ID, ToolID: tool.ID, Rating: 5, Content: "Great"}
	if err := st.CreateReview(ctx, &first); err != nil {
		t.Fatalf("first review: %v", err)
	}
	second := models.Review{UserID: u.ID, ToolID: tool.ID, Rating: 1, Content: "Changed my mind"}
	if err := st.CreateReview(ctx, &second); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("second review: got %v, want ErrDuplicate", err)
	}
	missing := models.Review{UserID: u.ID, ToolID: 424242, Rating: 3, Content: "?"}
	if err := st.CreateReview(ctx, &missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("review on missing tool: got %v, want ErrNotFound", err)
	}
}

func testDeleteReviewRemovesVotes(t *testing.T, st store.Store) {
	ctx := context.Background()
	tool := mustTool(t, st, "BoomTown", "Lead Generation", 0, false)
	author := mustUser(t, st, "writer")
	fan := mustUser(t, st, "fan")
	review := models.Review{UserID: author.ID, ToolID: tool.ID, Rating: 3, Content: "Leads are fine"}
	if err := st.CreateReview(ctx, &review); err != nil {
		t.Fatalf("create review: %v", err)
	}
	if _, err := st.CastVote(ctx, store.ReviewHelpful, fan.ID, review.ID); err != nil {
		t.Fatalf("helpful: %v", err)
	}
	if err := st.DeleteReview(ctx, review.ID); err != nil {
		t.Fatalf("delete review: %v", err)
	}
	if _, err := st.GetReview(ctx, review.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted review still readable: %v", err)
	}
	rows, err := st.CountVotes(ctx, store.ReviewHelpful, review.ID)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if rows != 0 {
		t.Fatalf("helpful votes left behind: %d", rows)
	}
	if err := st.DeleteReview(ctx, review.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func testVerificationTokenSingleUse(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := mustUser(t, st, "pending")
	if err := st.SetVerificationToken(ctx, u.ID, "hash-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("set token: %v", err)
	}
	found, err := st.GetUserByTokenHash(ctx, "hash-1")
	if err != nil || found.ID != u.ID {
		t.Fatalf("lookup by token hash: %v %+v", err, found)
	}
	if err := st.ConsumeVerificationToken(ctx, u.ID, "hash-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := st.ConsumeVerificationToken(ctx, u.ID, "hash-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second consume: got %v, want ErrNotFound", err)
	}
	got, _ := st.GetUser(ctx, u.ID)
	if !got.IsVerified || got.VerificationTokenHash != nil || got.VerificationTokenExpiresAt != nil {
		t.Fatalf("user not verified or token kept: %+v", got)
	}
	if _, err := st.GetUserByTokenHash(ctx, "hash-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("token still resolvable: %v", err)
	}
}

func testDuplicateUser(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustUser(t, st, "agent")
	dup := models.User{Username: "agent", Email: "other@example.com", Password: "x", FirstName: "Ag", LastName: "Ent"}
	if err := st.CreateUser(ctx, &dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate username: got %v, want ErrDuplicate", err)
	}
	byEmail, err := st.GetUserByLogin(ctx, "AGENT@example.com")
	if err != nil || byEmail.Username != "agent" {
		t.Fatalf("login by email: %v %+v", err, byEmail)
	}

	// 用户名大小写不敏感
	mixed := models.User{Username: "Agent", Email: "third@example.com", Password: "x", FirstName: "Ag", LastName: "Ent"}
	if err := st.CreateUser(ctx, &mixed); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("case-variant username: got %v, want ErrDuplicate", err)
	}
	upper := models.User{Username: "Broker", Email: "Broker@Example.com", Password: "x", FirstName: "Br", LastName: "Oker"}
	if err := st.CreateUser(ctx, &upper); err != nil {
		t.Fatalf("create mixed-case user: %v", err)
	}
	if upper.Username != "broker" || upper.Email != "broker@example.com" {
		t.Fatalf("user not normalized: %q %q", upper.Username, upper.Email)
	}
	byName, err := st.GetUserByLogin(ctx, " BROKER ")
	if err != nil || byName.ID != upper.ID {
		t.Fatalf("login by username: %v %+v", err, byName)
	}
}

func assertIDs(t *testing.T, label string, tools []models.Tool, want ...uint) {
	t.Helper()
	if len(tools) != len(want) {
		t.Fatalf("%s: got %d tools, want %d", label, len(tools), len(want))
	}
	for i, id := range want {
		if tools[i].ID != id {
			got := make([]uint, len(tools))
			for j, tool := range tools {
				got[j] = tool.ID
			}
			t.Fatalf("%s order = %v, want %v", label, got, want)
		}
	}
}
