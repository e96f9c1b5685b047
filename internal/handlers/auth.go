package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"proptools/internal/middleware"
	"proptools/internal/services"
)

type AuthHandler struct {
	auth   *services.AuthService
	appURL string
}

func NewAuthHandler(auth *services.AuthService, appURL string) *AuthHandler {
	return &AuthHandler{auth: auth, appURL: appURL}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	result, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Login 同时写入 session cookie 并返回 bearer token，浏览器和 API 客户端都能用
func (h *AuthHandler) Login(c *gin.Context) {
	var in services.LoginInput
	if !bindJSON(c, &in) {
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserID, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		slog.WarnContext(c.Request.Context(), "clear session failed", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) CurrentUser(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// VerifyEmail GET /api/verify-email?token=
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if _, err := h.auth.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// VerifyEmailPage is the landing page for the link in the verification email.
func (h *AuthHandler) VerifyEmailPage(c *gin.Context) {
	data := gin.H{
		"Title":   "Email verification",
		"HomeURL": h.appURL + "/",
	}
	user, err := h.auth.VerifyEmail(c.Request.Context(), c.Query("token"))
	status := http.StatusOK
	switch {
	case err == nil:
		data["Success"] = true
		data["Username"] = user.Username
	case errors.Is(err, services.ErrTokenExpired):
		status = http.StatusBadRequest
		data["Message"] = "This verification link has expired."
	case errors.Is(err, services.ErrTokenInvalid):
		status = http.StatusBadRequest
		data["Message"] = "This verification link is invalid or has already been used."
	default:
		slog.ErrorContext(c.Request.Context(), "verify email page failed",
			"request_id", middleware.RequestIDFromContext(c.Request.Context()),
			"err", err,
		)
		status = http.StatusInternalServerError
		data["Message"] = "Something went wrong. Please try again later."
	}
	c.HTML(status, "verify_result", data)
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	sent, err := h.auth.ResendVerification(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Verification email sent"
	if !sent {
		msg = "Verification link created but the email could not be sent"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "email_sent": sent})
}
