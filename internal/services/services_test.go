package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Krosebrook/lovable-prompt-artist/internal/auth"
	"github.com/Krosebrook/lovable-prompt-artist/internal/llm"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

const fencedScript = "Here you go:\n```json\n" + `{"title":"Coffee 101","scenes":[` +
	`{"sceneNumber":1,"duration":"0:20","voiceOver":"Meet the bean.","visualDescription":"Close-up of roasted beans"},` +
	`{"sceneNumber":2,"duration":"40s","voiceOver":"Brew it right.","visualDescription":"Pour-over kettle in morning light"}` +
	"]}\n```"

// stubProvider 记录请求并返回预设结果
type stubProvider struct {
	mu      sync.Mutex
	text    string
	textErr error
	image   func(prompt string) (string, error)
	prompts []string
}

func (p *stubProvider) Initialize(map[string]string) error { return nil }
func (p *stubProvider) GetName() string                    { return "stub" }
func (p *stubProvider) GetSupportedModels() []string       { return []string{"stub-text", "stub-image"} }

func (p *stubProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()
	if p.textErr != nil {
		return nil, p.textErr
	}
	return &llm.CompletionResponse{Text: p.text, ModelName: "stub-text"}, nil
}

func (p *stubProvider) GenerateImage(_ context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()
	url, err := p.image(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &llm.ImageResponse{URL: url, ModelName: "stub-image"}, nil
}

func (p *stubProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

// recordingNotifier 记录推送的事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ string, e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	store         *storage.Store
	provider      *stubProvider
	notifier      *recordingNotifier
	permissions   *Permissions
	activity      *ActivityService
	analytics     *AnalyticsService
	templates     *TemplateService
	ai            *AIService
	scripts       *ScriptService
	storyboards   *StoryboardService
	projects      *ProjectService
	shares        *ShareService
	collaboration *CollaborationService
	renders       *RenderService
	users         *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store: store,
		provider: &stubProvider{
			text:  fencedScript,
			image: func(string) (string, error) { return "data:image/png;base64,iVBORw0KGgo=", nil },
		},
		notifier: &recordingNotifier{},
	}
	env.permissions = NewPermissions(store)
	env.activity = NewActivityService(store, env.notifier)
	env.analytics = NewAnalyticsService(store)
	env.templates, err = NewTemplateService(store, "")
	require.NoError(t, err)
	env.ai = NewAIService(WithProvider(env.provider), WithAITimeout(5*time.Second))
	env.scripts = NewScriptService(env.ai, env.templates, env.analytics)
	env.storyboards = NewStoryboardService(env.ai, env.analytics, func() int { return 2 })
	env.projects = NewProjectService(store, env.permissions, env.activity, env.analytics, env.notifier, nil)
	env.shares = NewShareService(store, env.permissions, env.activity, env.analytics, func() string { return "https://studio.example" })
	env.collaboration = NewCollaborationService(store, env.permissions, env.activity, env.notifier)
	env.renders = NewRenderService(store, env.permissions, env.analytics, env.notifier, 1)

	tokens, err := auth.NewTokenConfig("test-secret", time.Hour)
	require.NoError(t, err)
	env.users = NewUserService(store, tokens)
	return env
}

// addUser 直接写入用户，跳过 bcrypt
func (e *testEnv) addUser(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           "user-" + strings.Split(email, "@")[0],
		Email:        email,
		PasswordHash: "unused",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func sampleInput() *validation.ProjectInput {
	return &validation.ProjectInput{
		Title: "Launch video",
		Topic: "Launching a coffee subscription",
		Script: models.VideoScript{
			Title: "Launch video",
			Scenes: []models.Scene{
				{SceneNumber: 1, Duration: "0:30", VoiceOver: "Good coffee, every morning.", VisualDescription: "Steam rising from a mug"},
				{SceneNumber: 2, Duration: "30s", VoiceOver: "Subscribe today.", VisualDescription: "Logo on a kraft paper bag"},
			},
		},
	}
}

func (e *testEnv) createProject(t *testing.T, ownerID string) *models.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), ownerID, sampleInput())
	require.NoError(t, err)
	return p
}

func (e *testEnv) addCollaborator(t *testing.T, projectID, userID string, role models.Role) {
	t.Helper()
	require.NoError(t, e.store.Collaborators.Upsert(context.Background(), &models.Collaborator{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}))
}
