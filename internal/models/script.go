// internal/models/script.go
package models

// VideoScript AI 生成的视频脚本
type VideoScript struct {
	Title  string  `json:"title" validate:"required,max=200"`
	Scenes []Scene `json:"scenes" validate:"required,min=1,dive"`
}

// TemplateScene 模板中的场景骨架
type TemplateScene struct {
	SceneNumber     int    `json:"sceneNumber" yaml:"sceneNumber"`
	Duration        string `json:"duration" yaml:"duration"`
	VoiceOverPrompt string `json:"voiceOverPrompt" yaml:"voiceOverPrompt"`
	VisualPrompt    string `json:"visualPrompt" yaml:"visualPrompt"`
}

// TemplateStructure 模板结构
type TemplateStructure struct {
	Scenes          []TemplateScene `json:"scenes" yaml:"scenes"`
	GenerationHints []string        `json:"generationHints,omitempty" yaml:"generationHints,omitempty"`
}

// ScriptTemplate 脚本模板
type ScriptTemplate struct {
	ID             string            `json:"id" yaml:"id"`
	Title          string            `json:"title" yaml:"title"`
	Description    string            `json:"description" yaml:"description"`
	Category       string            `json:"category" yaml:"category"`
	TargetDuration string            `json:"target_duration" yaml:"target_duration"`
	SceneCount     int               `json:"scene_count" yaml:"-"`
	UsageCount     int               `json:"usage_count" yaml:"-"`
	Structure      TemplateStructure `json:"template_structure" yaml:"structure"`
}
