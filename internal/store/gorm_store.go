package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"proptools/internal/models"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened and migrated connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for maintenance commands.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateError maps driver errors onto store sentinels.
// The unique index is the only thing that decides a duplicate, so both the
// gorm translation and the raw pg code are checked.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	return err
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	normalizeUser(u)
	return translateError(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	return u, translateError(err)
}

// GetUserByLogin 支持用户名或邮箱登录，大小写不敏感
func (s *GormStore) GetUserByLogin(ctx context.Context, login string) (models.User, error) {
	var u models.User
	login = normalizeLogin(login)
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		Order("id ASC").
		First(&u).Error
	return u, translateError(err)
}

func (s *GormStore) GetUserByTokenHash(ctx context.Context, hash string) (models.User, error) {
	var u models.User
	if hash == "" {
		return u, ErrNotFound
	}
	err := s.db.WithContext(ctx).Where("verification_token_hash = ?", hash).First(&u).Error
	return u, translateError(err)
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

func (s *GormStore) SetVerificationToken(ctx context.Context, userID uint, hash string, expiresAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"verification_token_hash":       hash,
			"verification_token_expires_at": expiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeVerificationToken 条件更新：只有 token 仍匹配时才生效，保证一次性
func (s *GormStore) ConsumeVerificationToken(ctx context.Context, userID uint, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND verification_token_hash = ?", userID, hash).
		Updates(map[string]any{
			"is_verified":                   true,
			"verification_token_hash":       nil,
			"verification_token_expires_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) MarkVerified(ctx context.Context, userID uint) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_verified":                   true,
			"verification_token_hash":       nil,
			"verification_token_expires_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetAdmin(ctx context.Context, userID uint, isAdmin bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("is_admin", isAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
