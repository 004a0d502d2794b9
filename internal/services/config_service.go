// internal/services/config_service.go
package services

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Krosebrook/lovable-prompt-artist/internal/config"
	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
)

const maxConfigHistory = 100

// AISettings 对外展示的 AI 网关设置，不包含密钥本身
type AISettings struct {
	GatewayURL    string `json:"gateway_url"`
	ScriptModel   string `json:"script_model"`
	ImageModel    string `json:"image_model"`
	KeyConfigured bool   `json:"key_configured"`
	KeyHint       string `json:"key_hint,omitempty"`
	Ready         bool   `json:"ready"`
	ReadyState    string `json:"ready_state"`
}

// AISettingsInput 更新请求，空字段保持原值
type AISettingsInput struct {
	GatewayURL  string `json:"gateway_url"`
	APIKey      string `json:"api_key"`
	ScriptModel string `json:"script_model"`
	ImageModel  string `json:"image_model"`
}

// ConfigChangeRecord 配置变更记录
type ConfigChangeRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	ChangedBy string      `json:"changed_by"`
	Section   string      `json:"section"`
	OldValue  interface{} `json:"old_value"`
	NewValue  interface{} `json:"new_value"`
}

// ConfigService 运行期 AI 设置的读取与修改
type ConfigService struct {
	ai *AIService

	mu            sync.RWMutex
	changeHistory []ConfigChangeRecord
}

func NewConfigService(ai *AIService) *ConfigService {
	return &ConfigService{ai: ai, changeHistory: make([]ConfigChangeRecord, 0, 16)}
}

// AISettings 当前设置
func (s *ConfigService) AISettings() *AISettings {
	cfg := config.GetCurrentConfig()
	out := &AISettings{
		GatewayURL:    cfg.AIGatewayURL,
		ScriptModel:   cfg.ScriptModel,
		ImageModel:    cfg.ImageModel,
		KeyConfigured: cfg.AIGatewayAPIKey != "",
	}
	if n := len(cfg.AIGatewayAPIKey); n > 8 {
		out.KeyHint = "..." + cfg.AIGatewayAPIKey[n-4:]
	}
	if s.ai != nil {
		out.Ready = s.ai.IsReady()
		out.ReadyState = s.ai.GetReadyState()
	}
	return out
}

// UpdateAI 修改网关设置并持久化
func (s *ConfigService) UpdateAI(changedBy string, in AISettingsInput) (*AISettings, error) {
	in.GatewayURL = strings.TrimSpace(in.GatewayURL)
	if in.GatewayURL != "" {
		u, err := url.Parse(in.GatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperrors.NewValidationError("gateway_url must be an http(s) URL", err)
		}
	}

	old := config.GetCurrentConfig()
	if err := config.UpdateAIConfig(in.GatewayURL, strings.TrimSpace(in.APIKey),
		strings.TrimSpace(in.ScriptModel), strings.TrimSpace(in.ImageModel)); err != nil {
		return nil, apperrors.NewInternalError("save ai settings", err)
	}
	updated := config.GetCurrentConfig()

	s.recordChange(changedBy, "ai_gateway_url", old.AIGatewayURL, updated.AIGatewayURL)
	s.recordChange(changedBy, "script_model", old.ScriptModel, updated.ScriptModel)
	s.recordChange(changedBy, "image_model", old.ImageModel, updated.ImageModel)
	if in.APIKey != "" {
		s.recordChange(changedBy, "ai_gateway_api_key", "<redacted>", "<redacted>")
	}
	return s.AISettings(), nil
}

// recordChange 只记录实际变化的字段
func (s *ConfigService) recordChange(changedBy, section string, oldValue, newValue interface{}) {
	if oldValue == newValue && section != "ai_gateway_api_key" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.changeHistory) >= maxConfigHistory {
		s.changeHistory = s.changeHistory[1:]
	}
	s.changeHistory = append(s.changeHistory, ConfigChangeRecord{
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		Section:   section,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
}

// GetChangeHistory 最近的变更，limit <= 0 返回全部
func (s *ConfigService) GetChangeHistory(limit int) []ConfigChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.changeHistory) {
		limit = len(s.changeHistory)
	}
	history := make([]ConfigChangeRecord, limit)
	copy(history, s.changeHistory[len(s.changeHistory)-limit:])
	return history
}
