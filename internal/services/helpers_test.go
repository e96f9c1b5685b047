package services

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"proptools/internal/models"
	"proptools/internal/store"
)

type fixture struct {
	store *store.MemoryStore
	admin *models.Actor
	alice *models.Actor
	bob   *models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	return &fixture{
		store: st,
		admin: addUser(t, st, "admin", true),
		alice: addUser(t, st, "alice", false),
		bob:   addUser(t, st, "bob", false),
	}
}

func addUser(t *testing.T, st store.Store, name string, admin bool) *models.Actor {
	t.Helper()
	u := models.User{
		Username:  name,
		Email:     name + "@example.com",
		Password:  "x",
		FirstName: "Test",
		LastName:  "User",
		IsAdmin:   admin,
	}
	if err := st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return models.ActorFromUser(u)
}

func (f *fixture) tool(t *testing.T, name, category string, featured bool) models.Tool {
	t.Helper()
	tool := models.Tool{
		Name:        name,
		Description: name + " for real estate agents",
		Website:     "https://example.com/" + name,
		Category:    category,
		Featured:    featured,
	}
	if err := f.store.CreateTool(context.Background(), &tool); err != nil {
		t.Fatalf("create tool: %v", err)
	}
	return tool
}

func (f *fixture) review(t *testing.T, author *models.Actor, toolID uint, rating int) models.Review {
	t.Helper()
	r := models.Review{UserID: author.UserID, ToolID: toolID, Rating: rating, Content: "Works well for **listings**"}
	if err := f.store.CreateReview(context.Background(), &r); err != nil {
		t.Fatalf("create review: %v", err)
	}
	return r
}

// fakeMailer records every verification link it is asked to send.
type fakeMailer struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to, username, link string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return m.err
}

func (m *fakeMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		t.Fatalf("no verification email recorded")
	}
	u, err := url.Parse(m.links[len(m.links)-1])
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }
