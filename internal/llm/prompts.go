// internal/llm/prompts.go
package llm

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptFile 数据目录下可覆盖的提示词文件名
const PromptFile = "prompts.yaml"

// Prompts 提示词集合
type Prompts struct {
	Script struct {
		System       string `yaml:"system"`
		User         string `yaml:"user"`
		TemplateUser string `yaml:"template_user"`
	} `yaml:"script"`
	Image struct {
		Prompt string `yaml:"prompt"`
	} `yaml:"image"`
}

// DefaultPrompts 解析内置提示词
func DefaultPrompts() *Prompts {
	p := &Prompts{}
	if err := yaml.Unmarshal(defaultPrompts, p); err != nil {
		panic(fmt.Sprintf("内置提示词无效: %v", err))
	}
	return p
}

// LoadPrompts 读取数据目录中的覆盖文件，缺失字段沿用默认值
func LoadPrompts(dataDir string) (*Prompts, error) {
	p := DefaultPrompts()
	if dataDir == "" {
		return p, nil
	}

	data, err := os.ReadFile(filepath.Join(dataDir, PromptFile))
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取提示词文件失败: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("解析提示词文件失败: %w", err)
	}
	if override.Script.System != "" {
		p.Script.System = override.Script.System
	}
	if override.Script.User != "" {
		p.Script.User = override.Script.User
	}
	if override.Script.TemplateUser != "" {
		p.Script.TemplateUser = override.Script.TemplateUser
	}
	if override.Image.Prompt != "" {
		p.Image.Prompt = override.Image.Prompt
	}
	return p, nil
}

// ScriptPrompt 生成脚本的用户提示词，模板可为空
func (p *Prompts) ScriptPrompt(topic string, tpl *models.ScriptTemplate) string {
	if tpl == nil {
		return strings.NewReplacer("{topic}", topic).Replace(p.Script.User)
	}

	var hints strings.Builder
	for _, h := range tpl.Structure.GenerationHints {
		hints.WriteString("- " + h + "\n")
	}
	var outline strings.Builder
	for _, s := range tpl.Structure.Scenes {
		fmt.Fprintf(&outline, "%d. (%s) voice over: %s; visual: %s\n",
			s.SceneNumber, s.Duration, s.VoiceOverPrompt, s.VisualPrompt)
	}

	return strings.TrimSpace(strings.NewReplacer(
		"{topic}", topic,
		"{template}", tpl.Title,
		"{scene_count}", strconv.Itoa(tpl.SceneCount),
		"{target_duration}", tpl.TargetDuration,
		"{hints}", hints.String(),
		"{outline}", outline.String(),
	).Replace(p.Script.TemplateUser))
}

// ImagePrompt 分镜图提示词
func (p *Prompts) ImagePrompt(visualDescription string) string {
	return strings.TrimSpace(strings.NewReplacer("{visual}", visualDescription).Replace(p.Image.Prompt))
}
