package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"proptools/internal/config"
	"proptools/internal/models"
	"proptools/internal/store"
)

var seedTools = []models.Tool{
	{
		Name:        "Zillow",
		Description: "Search homes for sale and rent, get Zestimate home values and connect with local agents.",
		Website:     "https://www.zillow.com",
		Category:    "marketplace",
		Featured:    true,
	},
	{
		Name:        "Redfin",
		Description: "Brokerage and listing search with real-time MLS data, tour scheduling and market insights.",
		Website:     "https://www.redfin.com",
		Category:    "marketplace",
		Featured:    true,
	},
	{
		Name:        "Realtor.com",
		Description: "MLS-sourced listings, neighborhood data and agent search from the National Association of Realtors.",
		Website:     "https://www.realtor.com",
		Category:    "marketplace",
	},
}

// Seed 写入初始管理员和示例工具。已有工具时跳过，可重复执行
func Seed(ctx context.Context, st store.Store, admin config.AdminConfig) error {
	if admin.Username != "" && admin.Password != "" {
		if err := EnsureAdmin(ctx, st, admin); err != nil {
			return err
		}
	}

	count, err := st.CountTools(ctx)
	if err != nil {
		return fmt.Errorf("count tools: %w", err)
	}
	if count > 0 {
		slog.Info("tools already seeded, skipping", "count", count)
		return nil
	}
	for _, tool := range seedTools {
		tool := tool
		if err := st.CreateTool(ctx, &tool); err != nil {
			return fmt.Errorf("seed tool %s: %w", tool.Name, err)
		}
	}
	slog.Info("initial tools created", "count", len(seedTools))
	return nil
}

// EnsureAdmin creates a verified admin, or promotes and verifies an existing
// user with the same username or email.
func EnsureAdmin(ctx context.Context, st store.Store, admin config.AdminConfig) error {
	existing, err := st.GetUserByLogin(ctx, admin.Username)
	if errors.Is(err, store.ErrNotFound) && admin.Email != "" {
		existing, err = st.GetUserByLogin(ctx, admin.Email)
	}
	switch {
	case err == nil:
		if err := st.SetAdmin(ctx, existing.ID, true); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		if !existing.IsVerified {
			if err := st.MarkVerified(ctx, existing.ID); err != nil {
				return fmt.Errorf("verify admin: %w", err)
			}
		}
		slog.Info("admin user ensured", "user_id", existing.ID, "username", existing.Username)
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("lookup admin: %w", err)
	}

	if len(admin.Password) < 6 {
		return errors.New("admin password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		email = strings.ToLower(admin.Username) + "@localhost"
	}
	user := models.User{
		Username:   admin.Username,
		Email:      email,
		Password:   string(hash),
		FirstName:  "Site",
		LastName:   "Admin",
		IsAdmin:    true,
		IsVerified: true,
	}
	if err := st.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	slog.Info("admin user created", "user_id", user.ID, "username", user.Username)
	return nil
}
