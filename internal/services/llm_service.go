// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Krosebrook/lovable-prompt-artist/internal/config"
	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/llm"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"

	// 注册 gateway 提供者
	_ "github.com/Krosebrook/lovable-prompt-artist/internal/llm/providers/gateway"
)

// ProviderName 默认使用的提供者
const ProviderName = "gateway"

// AIService 封装 AI 网关调用
// 提供者按当前配置惰性创建，网关地址或密钥变化时重建
type AIService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerKey   string
	fixed         bool
	readyState    string

	// 全局图像生成并发上限，跨请求共享
	imageSlots *semaphore.Weighted

	prompts    *llm.Prompts
	configFunc func() *config.AppConfig
	timeout    time.Duration
	metrics    *utils.APIMetrics
	logger     *utils.Logger
}

// AIOption AIService 选项
type AIOption func(*AIService)

// WithProvider 使用固定的提供者，不再读取配置
func WithProvider(p llm.Provider) AIOption {
	return func(s *AIService) {
		s.provider = p
		s.fixed = p != nil
	}
}

// WithPrompts 指定提示词
func WithPrompts(p *llm.Prompts) AIOption {
	return func(s *AIService) { s.prompts = p }
}

// WithConfigSource 指定配置来源
func WithConfigSource(fn func() *config.AppConfig) AIOption {
	return func(s *AIService) { s.configFunc = fn }
}

// WithAITimeout 单次 AI 调用超时
func WithAITimeout(d time.Duration) AIOption {
	return func(s *AIService) { s.timeout = d }
}

// WithImageSlots 同时进行的图像生成上限，n <= 0 表示不限制
func WithImageSlots(n int) AIOption {
	return func(s *AIService) {
		if n > 0 {
			s.imageSlots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMetrics 指定指标记录器
func WithMetrics(m *utils.APIMetrics) AIOption {
	return func(s *AIService) { s.metrics = m }
}

func NewAIService(opts ...AIOption) *AIService {
	s := &AIService{
		prompts:    llm.DefaultPrompts(),
		configFunc: config.GetCurrentConfig,
		timeout:    60 * time.Second,
		readyState: "Not initialized",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = utils.NewAPIMetrics()
	}
	if s.logger == nil {
		s.logger = utils.GetLogger().With(map[string]interface{}{"component": "ai"})
	}
	if s.fixed {
		s.readyState = "Ready"
	}
	return s
}

// IsReady 是否能发起 AI 调用
func (s *AIService) IsReady() bool {
	_, err := s.getProvider()
	return err == nil
}

// GetReadyState 就绪状态说明
func (s *AIService) GetReadyState() string {
	s.IsReady()
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// getProvider 返回与当前配置一致的提供者
func (s *AIService) getProvider() (llm.Provider, error) {
	if s.fixed {
		return s.provider, nil
	}

	cfg := s.configFunc()
	key := cfg.AIGatewayURL + "\x00" + cfg.AIGatewayAPIKey + "\x00" + cfg.ScriptModel + "\x00" + cfg.ImageModel

	s.providerMutex.RLock()
	if s.provider != nil && s.providerKey == key {
		p := s.provider
		s.providerMutex.RUnlock()
		return p, nil
	}
	s.providerMutex.RUnlock()

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	if s.provider != nil && s.providerKey == key {
		return s.provider, nil
	}

	provider, err := llm.GetProvider(ProviderName, map[string]string{
		"api_key":      cfg.AIGatewayAPIKey,
		"base_url":     cfg.AIGatewayURL,
		"script_model": cfg.ScriptModel,
		"image_model":  cfg.ImageModel,
		"max_retries":  strconv.Itoa(2),
	})
	if err != nil {
		s.provider = nil
		s.providerKey = ""
		if errors.Is(err, llm.ErrMissingAPIKey) {
			s.readyState = "API key not configured"
			return nil, apperrors.NewConfigError("AI gateway is not configured", err)
		}
		s.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return nil, apperrors.NewConfigError("AI gateway is not configured", err)
	}

	s.provider = provider
	s.providerKey = key
	s.readyState = "Ready"
	s.logger.Info("AI 提供者已初始化", map[string]interface{}{
		"provider": provider.GetName(),
		"models":   provider.GetSupportedModels(),
	})
	return provider, nil
}

func (s *AIService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// GenerateScript 生成视频脚本，tpl 可为空
func (s *AIService) GenerateScript(ctx context.Context, topic string, tpl *models.ScriptTemplate) (*models.VideoScript, error) {
	provider, err := s.getProvider()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: s.prompts.Script.System,
		Prompt:       s.prompts.ScriptPrompt(topic, tpl),
	})
	if err != nil {
		s.metrics.RecordAIRequest("script", "", time.Since(start), err)
		return nil, asUpstream(err, "AI generation failed")
	}

	script, err := llm.ParseScript(resp.Text)
	s.metrics.RecordAIRequest("script", resp.ModelName, time.Since(start), err)
	if err != nil {
		s.logger.Warn("脚本解析失败", map[string]interface{}{
			"model":   resp.ModelName,
			"content": truncate(resp.Text, 500),
		})
		return nil, apperrors.NewUpstreamError(llm.ErrUnparseableScript.Error(), err)
	}
	return script, nil
}

// GenerateStoryboard 为单个场景生成分镜图
func (s *AIService) GenerateStoryboard(ctx context.Context, scene models.Scene) (*models.StoryboardImage, error) {
	provider, err := s.getProvider()
	if err != nil {
		return nil, err
	}

	if s.imageSlots != nil {
		if err := s.imageSlots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.imageSlots.Release(1)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := provider.GenerateImage(ctx, llm.ImageRequest{
		Prompt: s.prompts.ImagePrompt(scene.VisualDescription),
	})
	if err != nil {
		s.metrics.RecordAIRequest("image", "", time.Since(start), err)
		return nil, asUpstream(err, "Image generation failed")
	}
	s.metrics.RecordAIRequest("image", resp.ModelName, time.Since(start), nil)

	return &models.StoryboardImage{SceneNumber: scene.SceneNumber, ImageURL: resp.URL}, nil
}

// asUpstream 提供者返回的非 AppError 统一视为上游错误
func asUpstream(err error, message string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewUpstreamError(message, err)
}

// publicMessage 可以返回给客户端的错误描述
func publicMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeInternal, apperrors.ErrorTypeConfig:
			return "Generation failed"
		}
		return appErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Generation timed out"
	}
	return "Generation failed"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
