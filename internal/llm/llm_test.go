package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"fenced json", "Here:\n```json\n{\"title\":\"a\"}\n```\nthanks", `{"title":"a"}`},
		{"fenced without tag", "```\n{\"title\":\"b\"}\n```", `{"title":"b"}`},
		{"bare object", `Sure! {"title":"c"} hope it helps`, `{"title":"c"}`},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.content))
		})
	}
}

func TestParseScript(t *testing.T) {
	content := "```json\n" + `{"title":" Coffee ","scenes":[
		{"sceneNumber":1,"duration":"10 seconds","voiceOver":"v1","visualDescription":"d1"},
		{"duration":"20s","voiceOver":"v2","visualDescription":"d2","notes":"n"}]}` + "\n```"

	script, err := ParseScript(content)
	require.NoError(t, err)
	assert.Equal(t, "Coffee", script.Title)
	require.Len(t, script.Scenes, 2)
	assert.Equal(t, 2, script.Scenes[1].SceneNumber)
	assert.Equal(t, "n", script.Scenes[1].Notes)

	_, err = ParseScript("I cannot help with that")
	assert.ErrorIs(t, err, ErrUnparseableScript)

	_, err = ParseScript(`{"title":"empty","scenes":[]}`)
	assert.ErrorIs(t, err, ErrUnparseableScript)
}

func TestExtractImageURL(t *testing.T) {
	url, ok := ExtractImageURL(`{"role":"assistant","content":"","images":[{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}}]}`)
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", url)

	_, ok = ExtractImageURL(`{"role":"assistant","content":"no image"}`)
	assert.False(t, ok)
}

func TestPrompts(t *testing.T) {
	p := DefaultPrompts()
	assert.Equal(t, "Create a video script about: coffee", p.ScriptPrompt("coffee", nil))
	assert.Contains(t, p.Script.System, "Typically 4-6 scenes")
	assert.Contains(t, p.ImagePrompt("a cup"), "Create a professional video storyboard frame: a cup.")

	tpl := &models.ScriptTemplate{
		Title:          "Product Demo",
		SceneCount:     2,
		TargetDuration: "60 seconds",
		Structure: models.TemplateStructure{
			Scenes:          []models.TemplateScene{{SceneNumber: 1, Duration: "10s", VoiceOverPrompt: "hook", VisualPrompt: "close-up"}},
			GenerationHints: []string{"Keep it upbeat"},
		},
	}
	prompt := p.ScriptPrompt("coffee", tpl)
	assert.Contains(t, prompt, "Create a video script about: coffee")
	assert.Contains(t, prompt, `"Product Demo" format with 2 scenes`)
	assert.Contains(t, prompt, "- Keep it upbeat")
	assert.Contains(t, prompt, "1. (10s) voice over: hook; visual: close-up")
}

func TestLoadPromptsOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptFile), []byte("script:\n  user: \"Write about {topic}\"\n"), 0644))

	p, err := LoadPrompts(dir)
	require.NoError(t, err)
	assert.Equal(t, "Write about tea", p.ScriptPrompt("tea", nil))
	assert.NotEmpty(t, p.Image.Prompt)

	missing, err := LoadPrompts(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts().Script.User, missing.Script.User)
}

type stubProvider struct{ initialized map[string]string }

func (s *stubProvider) Initialize(config map[string]string) error {
	s.initialized = config
	return nil
}
func (s *stubProvider) GetName() string              { return "stub" }
func (s *stubProvider) GetSupportedModels() []string { return []string{"m"} }
func (s *stubProvider) CompleteText(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: "ok"}, nil
}
func (s *stubProvider) GenerateImage(context.Context, ImageRequest) (*ImageResponse, error) {
	return &ImageResponse{URL: "https://img"}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func() Provider { return &stubProvider{} })

	p, err := r.GetProvider("stub", map[string]string{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, "k", p.(*stubProvider).initialized["api_key"])

	_, err = r.GetProvider("missing", nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Equal(t, []string{"stub"}, r.GetAvailableProviders())
}
