package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"proptools/internal/models"
)

type ledgerKey struct {
	userID   uint
	targetID uint
}

// MemoryStore is an in-memory Store for local demos and tests.
// A single mutex plays the role of the database transaction, and the ledger
// key sets play the role of the unique indexes.
type MemoryStore struct {
	mu sync.RWMutex

	nextID  uint
	users   map[uint]models.User
	tools   map[uint]models.Tool
	reviews map[uint]models.Review
	groups  map[uint]models.Group
	ledgers map[string]map[ledgerKey]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uint]models.User),
		tools:   make(map[uint]models.Tool),
		reviews: make(map[uint]models.Review),
		groups:  make(map[uint]models.Group),
		ledgers: make(map[string]map[ledgerKey]time.Time),
	}
}

func (m *MemoryStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// users

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	normalizeUser(u)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	now := time.Now()
	u.ID = m.id()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id uint) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) GetUserByLogin(_ context.Context, login string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	login = normalizeLogin(login)
	var found *models.User
	for _, u := range m.users {
		if u.Username == login || u.Email == login {
			if found == nil || u.ID < found.ID {
				u := u
				found = &u
			}
		}
	}
	if found == nil {
		return models.User{}, ErrNotFound
	}
	return *found, nil
}

func (m *MemoryStore) GetUserByTokenHash(_ context.Context, hash string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if hash == "" {
		return models.User{}, ErrNotFound
	}
	for _, u := range m.users {
		if u.VerificationTokenHash != nil && *u.VerificationTokenHash == hash {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *MemoryStore) SetVerificationToken(_ context.Context, userID uint, hash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.VerificationTokenHash = &hash
	u.VerificationTokenExpiresAt = &expiresAt
	u.UpdatedAt = time.Now()
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) ConsumeVerificationToken(_ context.Context, userID uint, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.VerificationTokenHash == nil || *u.VerificationTokenHash != hash {
		return ErrNotFound
	}
	u.IsVerified = true
	u.VerificationTokenHash = nil
	u.VerificationTokenExpiresAt = nil
	u.UpdatedAt = time.Now()
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) MarkVerified(_ context.Context, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsVerified = true
	u.VerificationTokenHash = nil
	u.VerificationTokenExpiresAt = nil
	u.UpdatedAt = time.Now()
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) SetAdmin(_ context.Context, userID uint, isAdmin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsAdmin = isAdmin
	m.users[userID] = u
	return nil
}

// tools

func (m *MemoryStore) CreateTool(_ context.Context, t *models.Tool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	t.ID = m.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	m.tools[t.ID] = *t
	return nil
}

func (m *MemoryStore) UpdateTool(_ context.Context, id uint, changes ToolChanges) (models.Tool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tools[id]
	if !ok {
		return models.Tool{}, ErrNotFound
	}
	if changes.Name != nil {
		t.Name = *changes.Name
	}
	if changes.Description != nil {
		t.Description = *changes.Description
	}
	if changes.Website != nil {
		t.Website = *changes.Website
	}
	if changes.Category != nil {
		t.Category = *changes.Category
	}
	if changes.Logo != nil {
		t.Logo = *changes.Logo
	}
	if changes.Featured != nil {
		t.Featured = *changes.Featured
	}
	t.UpdatedAt = time.Now()
	m.tools[id] = t
	return t, nil
}

func (m *MemoryStore) GetTool(_ context.Context, id uint) (models.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tools[id]
	if !ok {
		return models.Tool{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) GetToolsByIDs(_ context.Context, ids []uint) ([]models.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tools := make([]models.Tool, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tools[id]; ok {
			tools = append(tools, t)
		}
	}
	return tools, nil
}

func (m *MemoryStore) ListTools(_ context.Context, q ToolQuery) ([]models.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(q.Search)
	tools := make([]models.Tool, 0)
	for _, t := range m.tools {
		if q.Category != "" && t.Category != q.Category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Name), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		tools = append(tools, t)
	}
	sortTools(tools, q.Sort)
	return tools, nil
}

// sortTools mirrors orderClause.
func sortTools(tools []models.Tool, by ToolSort) {
	sort.Slice(tools, func(i, j int) bool {
		a, b := tools[i], tools[j]
		switch by {
		case SortNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		case SortFeatured:
			if a.Featured != b.Featured {
				return a.Featured
			}
		}
		if a.Upvotes != b.Upvotes {
			return a.Upvotes > b.Upvotes
		}
		return a.ID < b.ID
	})
}

func (m *MemoryStore) ListCategories(_ context.Context) ([]models.CategoryCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, t := range m.tools {
		counts[t.Category]++
	}
	categories := make([]models.CategoryCount, 0, len(counts))
	for c, n := range counts {
		categories = append(categories, models.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Category < categories[j].Category })
	return categories, nil
}

func (m *MemoryStore) ToolReviewStats(_ context.Context, toolID uint) (int, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count, sum := 0, 0
	for _, r := range m.reviews {
		if r.ToolID == toolID {
			count++
			sum += r.Rating
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, float64(sum) / float64(count), nil
}

func (m *MemoryStore) CountTools(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.tools)), nil
}

// reviews

func (m *MemoryStore) withAuthor(r models.Review) models.Review {
	r.User = m.users[r.UserID]
	return r
}

func (m *MemoryStore) CreateReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tools[r.ToolID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[r.UserID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.reviews {
		if existing.UserID == r.UserID && existing.ToolID == r.ToolID {
			return ErrDuplicate
		}
	}
	now := time.Now()
	r.ID = m.id()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.HelpfulCount = 0
	m.reviews[r.ID] = *r
	*r = m.withAuthor(*r)
	return nil
}

func (m *MemoryStore) GetReview(_ context.Context, id uint) (models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reviews[id]
	if !ok {
		return models.Review{}, ErrNotFound
	}
	return m.withAuthor(r), nil
}

func (m *MemoryStore) UpdateReview(_ context.Context, id uint, changes ReviewChanges) (models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return models.Review{}, ErrNotFound
	}
	if changes.Rating != nil {
		r.Rating = *changes.Rating
	}
	if changes.Content != nil {
		r.Content = *changes.Content
	}
	if changes.Pros != nil {
		r.Pros = *changes.Pros
	}
	if changes.Cons != nil {
		r.Cons = *changes.Cons
	}
	r.UpdatedAt = time.Now()
	m.reviews[id] = r
	return m.withAuthor(r), nil
}

func (m *MemoryStore) DeleteReview(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return ErrNotFound
	}
	for key := range m.ledgers[ReviewHelpful.Name] {
		if key.targetID == id {
			delete(m.ledgers[ReviewHelpful.Name], key)
		}
	}
	delete(m.reviews, id)
	return nil
}

func (m *MemoryStore) ListReviewsByTool(_ context.Context, toolID uint) ([]models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reviews := make([]models.Review, 0)
	for _, r := range m.reviews {
		if r.ToolID == toolID {
			reviews = append(reviews, m.withAuthor(r))
		}
	}
	sort.Slice(reviews, func(i, j int) bool {
		a, b := reviews[i], reviews[j]
		if a.HelpfulCount != b.HelpfulCount {
			return a.HelpfulCount > b.HelpfulCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return reviews, nil
}

// groups

func (m *MemoryStore) CreateGroup(_ context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.groups {
		if existing.Name == g.Name {
			return ErrDuplicate
		}
	}
	if _, ok := m.users[g.CreatedBy]; !ok {
		return ErrNotFound
	}
	now := time.Now()
	g.ID = m.id()
	g.MemberCount = 0
	g.CreatedAt = now
	g.UpdatedAt = now
	m.groups[g.ID] = *g
	return nil
}

func (m *MemoryStore) GetGroup(_ context.Context, id uint) (models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return models.Group{}, ErrNotFound
	}
	return g, nil
}

func (m *MemoryStore) ListGroups(_ context.Context) ([]models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	groups := make([]models.Group, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].MemberCount != groups[j].MemberCount {
			return groups[i].MemberCount > groups[j].MemberCount
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// ledgers

// counter returns the current counter of a target and a setter for it.
// Callers must hold m.mu.
func (m *MemoryStore) counter(l Ledger, targetID uint) (int, func(int), bool) {
	switch l.Name {
	case ToolUpvotes.Name:
		t, ok := m.tools[targetID]
		return t.Upvotes, func(n int) { t.Upvotes = n; m.tools[targetID] = t }, ok
	case ReviewHelpful.Name:
		r, ok := m.reviews[targetID]
		return r.HelpfulCount, func(n int) { r.HelpfulCount = n; m.reviews[targetID] = r }, ok
	case GroupMembers.Name:
		g, ok := m.groups[targetID]
		return g.MemberCount, func(n int) { g.MemberCount = n; m.groups[targetID] = g }, ok
	}
	return 0, nil, false
}

func (m *MemoryStore) CastVote(ctx context.Context, l Ledger, userID, targetID uint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, set, ok := m.counter(l, targetID)
	if !ok {
		return 0, ErrNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return 0, ErrNotFound
	}
	rows, ok := m.ledgers[l.Name]
	if !ok {
		rows = make(map[ledgerKey]time.Time)
		m.ledgers[l.Name] = rows
	}
	key := ledgerKey{userID: userID, targetID: targetID}
	if _, exists := rows[key]; exists {
		return 0, ErrDuplicate
	}
	rows[key] = time.Now()
	set(current + 1)
	return current + 1, nil
}

func (m *MemoryStore) CountVotes(_ context.Context, l Ledger, targetID uint) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countRows(l, targetID), nil
}

func (m *MemoryStore) countRows(l Ledger, targetID uint) int {
	n := 0
	for key := range m.ledgers[l.Name] {
		if key.targetID == targetID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) ReconcileCounter(_ context.Context, l Ledger, targetID uint) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before, set, ok := m.counter(l, targetID)
	if !ok {
		return 0, 0, ErrNotFound
	}
	after := m.countRows(l, targetID)
	if before != after {
		set(after)
	}
	return before, after, nil
}

// SetCounterForTest overwrites a counter without touching the ledger.
// It only exists to simulate drift.
func (m *MemoryStore) SetCounterForTest(l Ledger, targetID uint, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, set, ok := m.counter(l, targetID); ok {
		set(n)
	}
}
