package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"proptools/internal/models"
	"proptools/internal/services"
)

const (
	ActorKey      = "actor"
	SessionUserID = "user_id"
)

// ActorLoader resolves a request's credentials to an actor.
// *services.AuthService satisfies it.
type ActorLoader interface {
	ParseAccessToken(token string) (uint, error)
	ActorByID(ctx context.Context, userID uint) (*models.Actor, error)
}

// LoadActor 从 Bearer token 或 session 中解析当前用户。
// 凭证无效或用户已删除按匿名处理，存储故障直接返回 500
func LoadActor(loader ActorLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := resolveUserID(c, loader); ok {
			actor, err := loader.ActorByID(c.Request.Context(), userID)
			switch {
			case err == nil && actor != nil:
				c.Set(ActorKey, actor)
			case err != nil && !errors.Is(err, services.ErrNotFound):
				slog.ErrorContext(c.Request.Context(), "load actor failed",
					"user_id", userID,
					"request_id", RequestIDFromContext(c.Request.Context()),
					"err", err,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
		}
		c.Next()
	}
}

func resolveUserID(c *gin.Context, loader ActorLoader) (uint, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return 0, false
		}
		userID, err := loader.ParseAccessToken(strings.TrimSpace(token))
		if err != nil {
			return 0, false
		}
		return userID, true
	}

	switch v := sessions.Default(c).Get(SessionUserID).(type) {
	case uint:
		return v, v > 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	}
	return 0, false
}

// CurrentActor returns the actor loaded for this request, or nil when anonymous.
func CurrentActor(c *gin.Context) *models.Actor {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*models.Actor)
	return actor
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentActor(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// AdminRequired rejects anonymous callers with 401 and non-admins with 403.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if actor == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !actor.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
