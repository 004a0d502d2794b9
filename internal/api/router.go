// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Krosebrook/lovable-prompt-artist/internal/config"
	"github.com/Krosebrook/lovable-prompt-artist/internal/di"
	"github.com/Krosebrook/lovable-prompt-artist/internal/ratelimit"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// DefaultMaxBodyBytes 请求体上限
const DefaultMaxBodyBytes = 2 << 20

// Options 路由与处理器的运行参数
type Options struct {
	CORS          CORSOptions
	Debug         bool
	Metrics       *utils.APIMetrics
	Limiter       *RateLimiter
	MaxBodyBytes  int64
	FrameInterval time.Duration
}

// OptionsFromConfig 按当前运行期配置生成
func OptionsFromConfig(allowedOrigins []string) Options {
	cfg := config.GetCurrentConfig()
	return Options{
		CORS: CORSOptions{
			AllowedOrigins: allowedOrigins,
			AllowAll:       cfg.Env != config.EnvProduction,
		},
		Debug: cfg.DebugMode,
	}
}

// SetupRouter 配置HTTP路由
func SetupRouter(container *di.Container, opts Options) (*gin.Engine, error) {
	if opts.Metrics == nil {
		opts.Metrics = utils.NewAPIMetrics()
	}
	handler, err := NewHandler(container, opts)
	if err != nil {
		return nil, err
	}
	return NewRouter(handler, opts), nil
}

// NewRouter 注册全部路由
func NewRouter(handler *Handler, opts Options) *gin.Engine {
	if opts.Metrics == nil {
		opts.Metrics = utils.NewAPIMetrics()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(ratelimit.NewLimiter(ratelimit.NewMemoryStore()), ConfiguredLimits, opts.Metrics)
	}
	handler.limiter = limiter

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(opts.Metrics))
	r.Use(corsMiddleware(opts.CORS))
	r.Use(bodyLimit(maxBody))

	r.GET("/health", handler.HealthCheck)

	api := r.Group("/api")

	// ===============================
	// 公开路由
	// ===============================
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", limiter.LimitByIP(ratelimit.EndpointAuth), handler.Register)
		authGroup.POST("/login", limiter.LimitByIP(ratelimit.EndpointAuth), handler.Login)
	}
	api.GET("/public/shares/:token", handler.PublicShare)

	// ===============================
	// 需要登录的路由
	// ===============================
	secured := api.Group("")
	secured.Use(AuthMiddleware(handler.Users, handler.Response))
	{
		secured.GET("/auth/me", handler.Me)

		secured.POST("/scripts/generate", limiter.Limit(ratelimit.EndpointGenerateScript), handler.GenerateScript)

		storyboards := secured.Group("/storyboards")
		{
			storyboards.POST("/generate", limiter.Limit(ratelimit.EndpointGenerateStoryboard), handler.GenerateStoryboard)
			// 批量按场景数在处理器中扣减
			storyboards.POST("/batch", handler.GenerateStoryboardBatch)
		}

		projects := secured.Group("/projects")
		{
			projects.GET("", handler.ListProjects)
			projects.POST("", handler.CreateProject)
			projects.GET("/:id", handler.GetProject)
			projects.PUT("/:id", handler.UpdateProject)
			projects.DELETE("/:id", handler.DeleteProject)
			projects.PUT("/:id/images", handler.AttachImages)
			projects.GET("/:id/duration", handler.ProjectDuration)
			projects.GET("/:id/report.pdf", limiter.Limit(ratelimit.EndpointExportReport), handler.ExportReport)
			projects.POST("/:id/renders", limiter.Limit(ratelimit.EndpointExportVideo), handler.CreateRender)
			projects.GET("/:id/share", handler.GetProjectShare)

			projects.GET("/:id/collaborators", handler.ListCollaborators)
			projects.POST("/:id/collaborators", handler.InviteCollaborator)
			projects.DELETE("/:id/collaborators/:userId", handler.RemoveCollaborator)
			projects.GET("/:id/comments", handler.ListComments)
			projects.POST("/:id/comments", handler.AddComment)
			projects.GET("/:id/activity", handler.ListActivity)

			// WebSocket
			projects.GET("/:id/ws", handler.ProjectWebSocket)
			projects.GET("/:id/preview/ws", handler.PreviewWebSocket)
		}

		shares := secured.Group("/shares")
		{
			shares.POST("", limiter.Limit(ratelimit.EndpointGenerateShareLink), handler.CreateShare)
			shares.DELETE("/:token", handler.RevokeShare)
			shares.GET("/:token/qr", handler.ShareQRCode)
		}

		secured.GET("/renders/:id", handler.GetRender)

		templates := secured.Group("/templates")
		{
			templates.GET("", handler.ListTemplates)
			templates.GET("/:id", handler.GetTemplate)
		}

		analytics := secured.Group("/analytics")
		{
			analytics.POST("/events", handler.TrackEvent)
			analytics.GET("/summary", handler.AnalyticsSummary)
		}

		// 调试模式下开放运行期 AI 设置
		if opts.Debug {
			settings := secured.Group("/settings")
			{
				settings.GET("/ai", handler.GetAISettings)
				settings.PUT("/ai", handler.UpdateAISettings)
			}
		}
	}

	return r
}

// bodyLimit 限制请求体大小
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
