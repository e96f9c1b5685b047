package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"proptools/internal/models"
	"proptools/internal/store"
)

type RegisterInput struct {
	Username  string `json:"username" validate:"min=3,max=50,username"`
	Password  string `json:"password" validate:"min=6,max=72"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"notblank,min=2,max=50"`
	LastName  string `json:"last_name" validate:"notblank,min=2,max=50"`
}

type LoginInput struct {
	Username string `json:"username" validate:"notblank"` // 用户名或邮箱
	Password string `json:"password" validate:"required"`
}

// RegisterResult 注册结果。邮件发送失败不影响注册
type RegisterResult struct {
	User      models.User `json:"user"`
	EmailSent bool        `json:"email_sent"`
}

type AuthService struct {
	store           store.Store
	mailer          Mailer
	tokens          *TokenService
	appURL          string
	verificationTTL time.Duration
	now             func() time.Time
}

func NewAuthService(st store.Store, mailer Mailer, tokens *TokenService, appURL string, verificationTTL time.Duration) *AuthService {
	if verificationTTL <= 0 {
		verificationTTL = 24 * time.Hour
	}
	return &AuthService{
		store:           st,
		mailer:          mailer,
		tokens:          tokens,
		appURL:          strings.TrimRight(appURL, "/"),
		verificationTTL: verificationTTL,
		now:             time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateStruct(in); err != nil {
		return RegisterResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return RegisterResult{}, invalid("password", "must be at most 72 bytes")
	}
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return RegisterResult{}, ErrUsernameTaken
		}
		return RegisterResult{}, err
	}

	sent, err := s.issueVerification(ctx, user)
	if err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{User: user, EmailSent: sent}, nil
}

// issueVerification 生成新 token 并发送邮件。
// token 一旦写入就不会因为邮件失败回滚，返回值只表示邮件是否发出。
func (s *AuthService) issueVerification(ctx context.Context, user models.User) (bool, error) {
	raw, hash, err := newVerificationToken()
	if err != nil {
		return false, err
	}
	expiresAt := s.now().Add(s.verificationTTL)
	if err := s.store.SetVerificationToken(ctx, user.ID, hash, expiresAt); err != nil {
		return false, mapStoreErr(err, ErrUserNotFound)
	}

	link := s.appURL + "/verify-email?token=" + url.QueryEscape(raw)
	if s.mailer == nil {
		return false, nil
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Username, link, s.verificationTTL); err != nil {
		if !errors.Is(err, ErrMailDisabled) {
			slog.ErrorContext(ctx, "send verification email failed", "user_id", user.ID, "err", err)
		}
		return false, nil
	}
	return true, nil
}

// VerifyEmail 校验 token：不存在 → TokenInvalid，过期 → TokenExpired，
// 成功后 token 立即失效，再次使用返回 TokenInvalid
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.User{}, ErrTokenInvalid
	}
	hash := hashToken(token)
	user, err := s.store.GetUserByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrTokenInvalid
		}
		return models.User{}, err
	}
	if user.VerificationTokenExpiresAt == nil || !s.now().Before(*user.VerificationTokenExpiresAt) {
		return models.User{}, ErrTokenExpired
	}
	if err := s.store.ConsumeVerificationToken(ctx, user.ID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrTokenInvalid
		}
		return models.User{}, err
	}
	user.IsVerified = true
	user.VerificationTokenHash = nil
	user.VerificationTokenExpiresAt = nil
	return user, nil
}

// ResendVerification 重新发送验证邮件，旧 token 作废
func (s *AuthService) ResendVerification(ctx context.Context, actor *models.Actor) (bool, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return false, err
	}
	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return false, mapStoreErr(err, ErrUserNotFound)
	}
	if user.IsVerified {
		return false, ErrAlreadyVerified
	}
	return s.issueVerification(ctx, user)
}

// AdminVerifyUser 管理员手动验证用户，可重复调用
func (s *AuthService) AdminVerifyUser(ctx context.Context, actor *models.Actor, userID uint) (models.User, error) {
	if err := Authorize(actor, AdminOnly, 0); err != nil {
		return models.User{}, err
	}
	if err := s.store.MarkVerified(ctx, userID); err != nil {
		return models.User{}, mapStoreErr(err, ErrUserNotFound)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, mapStoreErr(err, ErrUserNotFound)
	}
	slog.InfoContext(ctx, "user verified by admin", "user_id", userID, "admin_id", actor.UserID)
	return user, nil
}

// Login 支持用户名或邮箱登录，返回用户和 access token
func (s *AuthService) Login(ctx context.Context, in LoginInput) (models.User, string, error) {
	if err := validateStruct(in); err != nil {
		return models.User{}, "", err
	}
	user, err := s.store.GetUserByLogin(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// 用户不存在时也做一次比较，避免通过耗时判断用户名
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
			return models.User{}, "", ErrInvalidCredentials
		}
		return models.User{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return models.User{}, "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, actor *models.Actor) (models.User, error) {
	if err := Authorize(actor, Authenticated, 0); err != nil {
		return models.User{}, err
	}
	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return models.User{}, mapStoreErr(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor *models.Actor) ([]models.User, error) {
	if err := Authorize(actor, AdminOnly, 0); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// ActorByID 重新从存储加载用户，保证权限标记是最新的
func (s *AuthService) ActorByID(ctx context.Context, userID uint) (*models.Actor, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err, ErrUserNotFound)
	}
	return models.ActorFromUser(user), nil
}

// ParseAccessToken 校验 bearer token 并返回用户 ID
func (s *AuthService) ParseAccessToken(token string) (uint, error) {
	return s.tokens.Parse(token)
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("proptools-dummy-password"), bcrypt.MinCost)

func newVerificationToken() (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
