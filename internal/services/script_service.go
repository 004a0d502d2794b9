// internal/services/script_service.go
package services

import (
	"context"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

// ScriptService 脚本生成流程：模板解析、AI 调用、埋点
type ScriptService struct {
	ai        *AIService
	templates *TemplateService
	analytics *AnalyticsService
}

func NewScriptService(ai *AIService, templates *TemplateService, analytics *AnalyticsService) *ScriptService {
	return &ScriptService{ai: ai, templates: templates, analytics: analytics}
}

// Generate 生成脚本，指定模板时按模板结构生成
func (s *ScriptService) Generate(ctx context.Context, userID string, req validation.ScriptRequest) (*models.VideoScript, error) {
	var tpl *models.ScriptTemplate
	if req.TemplateID != "" {
		t, err := s.templates.Get(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}
		tpl = t
	}

	script, err := s.ai.GenerateScript(ctx, req.Topic, tpl)
	if err != nil {
		return nil, err
	}

	meta := map[string]interface{}{"scene_count": len(script.Scenes)}
	if tpl != nil {
		meta["template_id"] = tpl.ID
		s.templates.MarkUsed(ctx, tpl.ID)
		s.analytics.Track(ctx, userID, models.EventTemplateUsed, "", map[string]interface{}{"template_id": tpl.ID})
	}
	s.analytics.Track(ctx, userID, models.EventScriptGenerated, "", meta)
	return script, nil
}
