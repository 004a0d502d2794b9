// internal/api/handlers.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Krosebrook/lovable-prompt-artist/internal/di"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/ratelimit"
	"github.com/Krosebrook/lovable-prompt-artist/internal/services"
	"github.com/Krosebrook/lovable-prompt-artist/internal/timeline"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

// maxHealthLogs /health?logs= 的上限
const maxHealthLogs = 100

// Handler 处理API请求
type Handler struct {
	Users         *services.UserService
	Scripts       *services.ScriptService
	Storyboards   *services.StoryboardService
	Templates     *services.TemplateService
	Projects      *services.ProjectService
	Shares        *services.ShareService
	Collaboration *services.CollaborationService
	Exports       *services.ExportService
	Renders       *services.RenderService
	Analytics     *services.AnalyticsService
	Health        *services.HealthService
	Config        *services.ConfigService
	Hub           *Hub
	Response      *ResponseHelper

	upgrader      *websocket.Upgrader
	limiter       *RateLimiter
	frameInterval time.Duration
	debug         bool
	logger        *utils.Logger
}

// NewHandler 从容器中取出所有服务
func NewHandler(container *di.Container, opts Options) (*Handler, error) {
	h := &Handler{}
	var err error
	resolveInto(container, di.ServiceUsers, &h.Users, &err)
	resolveInto(container, di.ServiceScripts, &h.Scripts, &err)
	resolveInto(container, di.ServiceStoryboards, &h.Storyboards, &err)
	resolveInto(container, di.ServiceTemplates, &h.Templates, &err)
	resolveInto(container, di.ServiceProjects, &h.Projects, &err)
	resolveInto(container, di.ServiceShares, &h.Shares, &err)
	resolveInto(container, di.ServiceCollaboration, &h.Collaboration, &err)
	resolveInto(container, di.ServiceExports, &h.Exports, &err)
	resolveInto(container, di.ServiceRenders, &h.Renders, &err)
	resolveInto(container, di.ServiceAnalytics, &h.Analytics, &err)
	resolveInto(container, di.ServiceHealth, &h.Health, &err)
	resolveInto(container, di.ServiceConfig, &h.Config, &err)
	resolveInto(container, di.ServiceHub, &h.Hub, &err)
	if err != nil {
		return nil, err
	}

	h.Response = NewResponseHelper(opts.Metrics)
	h.upgrader = newUpgrader(opts.CORS)
	h.frameInterval = opts.FrameInterval
	if h.frameInterval <= 0 {
		h.frameInterval = timeline.DefaultFrameInterval
	}
	h.debug = opts.Debug
	h.logger = utils.GetLogger().With(map[string]interface{}{"component": "api"})
	return h, nil
}

func resolveInto[T any](container *di.Container, name string, dst *T, errp *error) {
	if *errp != nil {
		return
	}
	*dst, *errp = di.Resolve[T](container, name)
}

// readBody 读取请求体，超出上限时返回 400
func (h *Handler) readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		h.Response.BadRequest(c, "Invalid request body")
		return nil, false
	}
	return body, true
}

// bindJSON 解析 JSON 请求体
func (h *Handler) bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.Response.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}

// ===============================
// 认证
// ===============================

// Register 注册账号
func (h *Handler) Register(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	creds, err := validation.ValidateCredentials(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	result, err := h.Users.Register(c.Request.Context(), creds)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, result)
}

// Login 登录，只校验非空，密码策略仅在注册时检查
func (h *Handler) Login(c *gin.Context) {
	var creds validation.Credentials
	if !h.bindJSON(c, &creds) {
		return
	}
	if creds.Email == "" || creds.Password == "" {
		h.Response.BadRequest(c, "Email and password are required")
		return
	}
	result, err := h.Users.Login(c.Request.Context(), creds.Email, creds.Password)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, result)
}

// Me 当前用户
func (h *Handler) Me(c *gin.Context) {
	user, err := h.Users.Me(c.Request.Context(), mustUser(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"user": user})
}

// ===============================
// AI 生成
// ===============================

// GenerateScript 生成视频脚本
func (h *Handler) GenerateScript(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	req, err := validation.GenerateScriptInput(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	script, err := h.Scripts.Generate(c.Request.Context(), mustUser(c), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"script": script})
}

// GenerateStoryboard 生成单个场景的分镜图
func (h *Handler) GenerateStoryboard(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	req, err := validation.StoryboardInput(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	img, err := h.Storyboards.Generate(c.Request.Context(), mustUser(c), req.Scene)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, img)
}

// GenerateStoryboardBatch 批量生成分镜图
func (h *Handler) GenerateStoryboardBatch(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	req, err := validation.StoryboardBatchInput(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	// 与单张生成共用额度，每个场景计一次
	if h.limiter != nil && !h.limiter.Charge(c, ratelimit.EndpointGenerateStoryboard, len(req.Scenes)) {
		return
	}
	result, err := h.Storyboards.GenerateBatch(c.Request.Context(), mustUser(c), req.Scenes)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, result)
}

// ===============================
// 项目
// ===============================

// ListProjects 自己的和共享给自己的项目
func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.Projects.List(c.Request.Context(), mustUser(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"projects": projects})
}

// CreateProject 保存项目
func (h *Handler) CreateProject(c *gin.Context) {
	var in validation.ProjectInput
	if !h.bindJSON(c, &in) {
		return
	}
	project, err := h.Projects.Create(c.Request.Context(), mustUser(c), &in)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, project)
}

// GetProject 项目详情
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.Projects.Get(c.Request.Context(), mustUser(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, project)
}

// UpdateProject 更新项目
func (h *Handler) UpdateProject(c *gin.Context) {
	var in validation.ProjectInput
	if !h.bindJSON(c, &in) {
		return
	}
	project, err := h.Projects.Update(c.Request.Context(), mustUser(c), c.Param("id"), &in)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, project)
}

// AttachImages 合并分镜图
func (h *Handler) AttachImages(c *gin.Context) {
	var req struct {
		StoryboardImages []models.StoryboardImage `json:"storyboard_images"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	if len(req.StoryboardImages) == 0 {
		h.Response.BadRequest(c, "storyboard_images must not be empty")
		return
	}
	for i := range req.StoryboardImages {
		if err := validation.Struct(&req.StoryboardImages[i]); err != nil {
			h.Response.Error(c, err)
			return
		}
	}
	project, err := h.Projects.AttachImages(c.Request.Context(), mustUser(c), c.Param("id"), req.StoryboardImages)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, project)
}

// DeleteProject 删除项目
func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.Projects.Delete(c.Request.Context(), mustUser(c), c.Param("id")); err != nil {
		h.Response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ProjectDuration 时长统计
func (h *Handler) ProjectDuration(c *gin.Context) {
	summary, err := h.Projects.Duration(c.Request.Context(), mustUser(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, summary)
}

// ExportReport 下载 PDF 报告
func (h *Handler) ExportReport(c *gin.Context) {
	rep, err := h.Exports.Report(c.Request.Context(), mustUser(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.DownloadResponse(c, rep.Data, rep.Filename, "application/pdf")
}

// ===============================
// 渲染任务
// ===============================

// CreateRender 创建视频渲染任务
func (h *Handler) CreateRender(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	opts, err := validation.ExportOptions(body, c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	job, err := h.Renders.Enqueue(c.Request.Context(), mustUser(c), opts)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"render_id": job.ID, "status": job.Status})
}

// GetRender 渲染任务状态
func (h *Handler) GetRender(c *gin.Context) {
	job, err := h.Renders.Get(c.Request.Context(), mustUser(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, job)
}

// ===============================
// 模板与统计
// ===============================

// ListTemplates 模板列表，可按分类过滤
func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.Templates.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{
		"templates":  templates,
		"categories": h.Templates.Categories(),
	})
}

// GetTemplate 模板详情
func (h *Handler) GetTemplate(c *gin.Context) {
	tpl, err := h.Templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, tpl)
}

// TrackEvent 客户端上报分析事件
func (h *Handler) TrackEvent(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	in, err := validation.AnalyticsEvent(body)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	event, err := h.Analytics.Record(c.Request.Context(), mustUser(c), in.EventType, in.ProjectID, in.Metadata)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, event)
}

// AnalyticsSummary 当前用户的统计摘要
func (h *Handler) AnalyticsSummary(c *gin.Context) {
	summary, err := h.Analytics.Summary(c.Request.Context(), mustUser(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, summary)
}

// ===============================
// 运行状态与设置
// ===============================

// HealthCheck 运行状态；调试模式下可通过 ?logs=n 附带最近日志
func (h *Handler) HealthCheck(c *gin.Context) {
	logs := 0
	if h.debug {
		if n, err := strconv.Atoi(c.Query("logs")); err == nil && n > 0 {
			logs = min(n, maxHealthLogs)
		}
	}
	report := h.Health.Check(c.Request.Context(), logs)
	report.Metrics["ws"] = h.Hub.GetStatus()
	h.Response.Success(c, report)
}

// GetAISettings AI 网关设置（仅调试模式注册）
func (h *Handler) GetAISettings(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"settings": h.Config.AISettings(),
		"history":  h.Config.GetChangeHistory(20),
	})
}

// UpdateAISettings 修改 AI 网关设置（仅调试模式注册）
func (h *Handler) UpdateAISettings(c *gin.Context) {
	var in services.AISettingsInput
	if !h.bindJSON(c, &in) {
		return
	}
	settings, err := h.Config.UpdateAI(mustUser(c), in)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, settings)
}
