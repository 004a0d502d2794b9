// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Krosebrook/lovable-prompt-artist/internal/api"
	"github.com/Krosebrook/lovable-prompt-artist/internal/auth"
	"github.com/Krosebrook/lovable-prompt-artist/internal/config"
	"github.com/Krosebrook/lovable-prompt-artist/internal/di"
	"github.com/Krosebrook/lovable-prompt-artist/internal/report"
	"github.com/Krosebrook/lovable-prompt-artist/internal/services"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage/postgres"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// ShutdownTimeout 优雅关闭的等待时间
const ShutdownTimeout = 30 * time.Second

// App 应用程序结构
type App struct {
	config    *config.Config
	container *di.Container
	store     *storage.Store
	hub       *api.Hub
	locks     *services.LockManager
	renders   *services.RenderService
	metrics   *utils.APIMetrics
	router    *gin.Engine
	server    *http.Server
	logger    *utils.Logger

	aiOptions []services.AIOption
}

// Option 构造参数
type Option func(*App)

// WithStore 使用已有的存储，测试中传入文件存储
func WithStore(store *storage.Store) Option {
	return func(a *App) { a.store = store }
}

// WithAIOptions 追加 AI 服务参数
func WithAIOptions(opts ...services.AIOption) Option {
	return func(a *App) { a.aiOptions = append(a.aiOptions, opts...) }
}

// WithContainer 使用指定容器，默认为全局容器
func WithContainer(c *di.Container) Option {
	return func(a *App) { a.container = c }
}

// New 初始化配置、存储和全部服务
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.container == nil {
		a.container = di.GetContainer()
	}

	if err := config.InitConfig(cfg); err != nil {
		return nil, fmt.Errorf("初始化配置失败: %w", err)
	}
	a.logger = utils.GetLogger().With(map[string]interface{}{"component": "app"})

	if a.store == nil {
		store, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	if err := a.initServices(); err != nil {
		a.store.Close()
		return nil, err
	}

	runtime := config.GetCurrentConfig()
	if runtime.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	routerOpts := api.OptionsFromConfig(cfg.AllowedOrigins)
	routerOpts.Metrics = a.metrics
	router, err := api.SetupRouter(a.container, routerOpts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// openStore 按驱动打开存储
func openStore(cfg *config.Config) (*storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		return postgres.Open(cfg.DatabaseURL)
	default:
		return storage.NewFileStore(filepath.Join(cfg.DataDir, "store"))
	}
}

// initServices 按依赖顺序创建服务并注册到容器
func (a *App) initServices() error {
	cfg := a.config
	a.metrics = utils.NewAPIMetrics()
	a.hub = api.NewHub()
	a.locks = services.NewLockManager(10 * time.Minute)

	tokens, err := auth.NewTokenConfig(cfg.AuthSecretKey, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("初始化令牌配置失败: %w", err)
	}
	if cfg.AuthSecretKey == "" {
		a.logger.Warn("未设置 AUTH_SECRET_KEY，重启后已签发的令牌失效", nil)
	}

	aiOpts := append([]services.AIOption{
		services.WithAITimeout(cfg.AITimeout),
		services.WithMetrics(a.metrics),
	}, a.aiOptions...)
	ai := services.NewAIService(aiOpts...)

	templates, err := services.NewTemplateService(a.store, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("加载模板失败: %w", err)
	}

	permissions := services.NewPermissions(a.store)
	activity := services.NewActivityService(a.store, a.hub)
	analytics := services.NewAnalyticsService(a.store)
	generator := report.NewGenerator(report.NewHTTPImageLoader(cfg.ImageTimeout))
	a.renders = services.NewRenderService(a.store, permissions, analytics, a.hub, cfg.RenderWorkers)

	storyboardLimit := func() int { return config.GetCurrentConfig().StoryboardParallel }

	c := a.container
	c.Register(di.ServiceStore, a.store)
	c.Register(di.ServiceHub, a.hub)
	c.Register(di.ServiceLocks, a.locks)
	c.Register(di.ServiceAI, ai)
	c.Register(di.ServiceTemplates, templates)
	c.Register(di.ServiceAnalytics, analytics)
	c.Register(di.ServiceUsers, services.NewUserService(a.store, tokens))
	c.Register(di.ServiceScripts, services.NewScriptService(ai, templates, analytics))
	c.Register(di.ServiceStoryboards, services.NewStoryboardService(ai, analytics, storyboardLimit))
	c.Register(di.ServiceProjects, services.NewProjectService(a.store, permissions, activity, analytics, a.hub, a.locks))
	c.Register(di.ServiceShares, services.NewShareService(a.store, permissions, activity, analytics, func() string {
		return config.GetCurrentConfig().PublicBaseURL
	}))
	c.Register(di.ServiceCollaboration, services.NewCollaborationService(a.store, permissions, activity, a.hub))
	c.Register(di.ServiceExports, services.NewExportService(generator, permissions, analytics, a.metrics))
	c.Register(di.ServiceRenders, a.renders)
	c.Register(di.ServiceHealth, services.NewHealthService(a.store.Driver, ai, a.metrics.Collector()))
	c.Register(di.ServiceConfig, services.NewConfigService(ai))

	a.logger.Info("服务初始化完成", map[string]interface{}{
		"storage":  a.store.Driver,
		"services": len(c.GetNames()),
		"ai_state": ai.GetReadyState(),
	})
	return nil
}

// Container 依赖注入容器
func (a *App) Container() *di.Container {
	return a.container
}

// Handler HTTP 处理器
func (a *App) Handler() http.Handler {
	return a.router
}

// Run 启动 HTTP 服务、渲染 worker 与指标输出，ctx 结束后优雅关闭
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("服务器启动", map[string]interface{}{"addr": a.server.Addr})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.renders.Run(ctx)
	})

	a.metrics.StartMetricsCollection(ctx, 5*time.Minute)

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("正在关闭服务器...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		a.hub.Close()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务器强制关闭: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close 释放资源
func (a *App) Close() {
	if a.locks != nil {
		a.locks.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("关闭存储失败", map[string]interface{}{"err": err})
		}
	}
	_ = utils.GetLogger().Sync()
}
