package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"proptools/internal/models"
)

var (
	// ErrNotFound means the addressed row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate means a unique constraint rejected the write.
	ErrDuplicate = errors.New("store: duplicate")
)

// ToolSort selects the ordering of tool listings.
type ToolSort string

const (
	SortUpvotes  ToolSort = "upvotes"
	SortNewest   ToolSort = "newest"
	SortFeatured ToolSort = "featured"
)

// ToolQuery filters tool listings. Empty fields do not filter.
type ToolQuery struct {
	Category string
	Search   string
	Sort     ToolSort
}

// ToolChanges is a partial tool update; nil fields are left untouched.
type ToolChanges struct {
	Name        *string
	Description *string
	Website     *string
	Category    *string
	Logo        *string
	Featured    *bool
}

// ReviewChanges is a partial review update; nil fields are left untouched.
type ReviewChanges struct {
	Rating  *int
	Content *string
	Pros    *string
	Cons    *string
}

// normalizeUser lowercases username and email so both are unique case-insensitively.
func normalizeUser(u *models.User) {
	u.Username = normalizeLogin(u.Username)
	u.Email = normalizeLogin(u.Email)
}

func normalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Store defines persistence operations for the directory.
type Store interface {
	Ping(ctx context.Context) error

	// users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (models.User, error)
	GetUserByLogin(ctx context.Context, login string) (models.User, error)
	GetUserByTokenHash(ctx context.Context, hash string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetVerificationToken(ctx context.Context, userID uint, hash string, expiresAt time.Time) error
	ConsumeVerificationToken(ctx context.Context, userID uint, hash string) error
	MarkVerified(ctx context.Context, userID uint) error
	SetAdmin(ctx context.Context, userID uint, isAdmin bool) error

	// tools
	CreateTool(ctx context.Context, t *models.Tool) error
	UpdateTool(ctx context.Context, id uint, changes ToolChanges) (models.Tool, error)
	GetTool(ctx context.Context, id uint) (models.Tool, error)
	GetToolsByIDs(ctx context.Context, ids []uint) ([]models.Tool, error)
	ListTools(ctx context.Context, q ToolQuery) ([]models.Tool, error)
	ListCategories(ctx context.Context) ([]models.CategoryCount, error)
	ToolReviewStats(ctx context.Context, toolID uint) (count int, average float64, err error)
	CountTools(ctx context.Context) (int64, error)

	// reviews
	CreateReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id uint) (models.Review, error)
	UpdateReview(ctx context.Context, id uint, changes ReviewChanges) (models.Review, error)
	DeleteReview(ctx context.Context, id uint) error
	ListReviewsByTool(ctx context.Context, toolID uint) ([]models.Review, error)

	// groups
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id uint) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)

	// ledgers
	CastVote(ctx context.Context, l Ledger, userID, targetID uint) (int, error)
	CountVotes(ctx context.Context, l Ledger, targetID uint) (int, error)
	ReconcileCounter(ctx context.Context, l Ledger, targetID uint) (before, after int, err error)
}
