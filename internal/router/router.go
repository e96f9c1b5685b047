package router

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"proptools/internal/config"
	"proptools/internal/handlers"
	"proptools/internal/middleware"
	"proptools/internal/services"
	"proptools/web"
)

const sessionName = "proptools_session"

// Deps 是路由需要的全部依赖，由 main 组装
type Deps struct {
	Config  config.Config
	DB      handlers.Pinger
	Auth    *services.AuthService
	Tools   *services.ToolService
	Reviews *services.ReviewService
	Groups  *services.GroupService
	Preview *services.SitePreviewService

	// nil 表示不限流
	AuthLimiter middleware.Limiter
	VoteLimiter middleware.Limiter
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RequestLog(),
		gin.Recovery(),
		middleware.SecurityHeaders(),
		cors.New(corsConfig(d.Config)),
		sessions.Sessions(sessionName, sessionStore(d.Config)),
		middleware.LoadActor(d.Auth),
	)
	r.HTMLRender = loadTemplates()

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	healthHandler := handlers.NewHealthHandler(d.DB)
	toolHandler := handlers.NewToolHandler(d.Tools)
	reviewHandler := handlers.NewReviewHandler(d.Reviews)
	groupHandler := handlers.NewGroupHandler(d.Groups)
	authHandler := handlers.NewAuthHandler(d.Auth, d.Config.AppURL)
	adminHandler := handlers.NewAdminHandler(d.Auth, d.Preview)

	authLimit := middleware.RateLimit(d.AuthLimiter)
	voteLimit := middleware.RateLimit(d.VoteLimiter)
	authRequired := middleware.AuthRequired()

	r.GET("/healthz", healthHandler.Health)
	r.GET("/verify-email", authHandler.VerifyEmailPage) // 邮件中的验证链接

	api := r.Group("/api")

	// 工具目录
	api.GET("/tools", toolHandler.List)
	api.GET("/tools/search", toolHandler.Search)
	api.GET("/tools/compare", toolHandler.Compare)
	api.GET("/tools/category/:category", toolHandler.ListByCategory)
	api.GET("/tools/:id", toolHandler.Get)
	api.GET("/categories", toolHandler.Categories)
	api.POST("/tools", middleware.AdminRequired(), toolHandler.Create)
	api.PATCH("/tools/:id", middleware.AdminRequired(), toolHandler.Update)
	api.POST("/tools/:id/upvote", authRequired, voteLimit, toolHandler.Upvote)

	// 评论
	api.GET("/reviews/tool/:toolId", reviewHandler.ListByTool)
	api.POST("/reviews", authRequired, reviewHandler.Create)
	api.PATCH("/reviews/:id", authRequired, reviewHandler.Update)
	api.DELETE("/reviews/:id", authRequired, reviewHandler.Delete)
	api.POST("/reviews/:id/helpful", authRequired, voteLimit, reviewHandler.MarkHelpful)

	// 小组
	api.GET("/groups", groupHandler.List)
	api.GET("/groups/:id", groupHandler.Get)
	api.POST("/groups", authRequired, groupHandler.Create)
	api.POST("/groups/:id/join", authRequired, voteLimit, groupHandler.Join)

	// 账号
	api.POST("/register", authLimit, authHandler.Register)
	api.POST("/login", authLimit, authHandler.Login)
	api.POST("/logout", authHandler.Logout)
	api.GET("/user", authRequired, authHandler.CurrentUser)
	api.GET("/verify-email", authHandler.VerifyEmail)
	api.POST("/verify-email/resend", authRequired, authLimit, authHandler.ResendVerification)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.POST("/users/:id/verify", adminHandler.VerifyUser)
		admin.GET("/tools/preview", adminHandler.PreviewTool)
	}
}

func corsConfig(cfg config.Config) cors.Config {
	return cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func sessionStore(cfg config.Config) sessions.Store {
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTDuration().Seconds()),
		HttpOnly: true,
		Secure:   strings.HasPrefix(cfg.AppURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

// loadTemplates 从嵌入的模板组装页面，每个页面 = layout + 内容
func loadTemplates() multitemplate.Renderer {
	r := multitemplate.NewRenderer()
	funcMap := template.FuncMap{
		"year": func() int { return time.Now().Year() },
	}
	layout := web.MustRead("pages/layout.html")

	r.AddFromStringsFuncs("verify_result", funcMap,
		`{{template "layout" .}}`,
		layout,
		web.MustRead("pages/verify_result.html"),
	)
	return r
}
