package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

func body(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestGenerateScriptInput(t *testing.T) {
	long := strings.Repeat("a", 1001)
	fiveHundred := strings.Repeat("b", 500)

	tests := []struct {
		name    string
		payload interface{}
		wantErr string
		want    string
	}{
		{name: "too short", payload: map[string]interface{}{"topic": "ab"}, wantErr: "at least 3"},
		{name: "short after trim", payload: map[string]interface{}{"topic": "  ab  "}, wantErr: "at least 3"},
		{name: "too long", payload: map[string]interface{}{"topic": long}, wantErr: "less than 1000"},
		{name: "script tag", payload: map[string]interface{}{"topic": "hello <script>alert(1)</script>"}, wantErr: "Invalid characters"},
		{name: "script tag mixed case", payload: map[string]interface{}{"topic": "x <ScRiPt src=y>"}, wantErr: "Invalid characters"},
		{name: "tag attribute", payload: map[string]interface{}{"topic": "<img onerror=javascript>"}, wantErr: "Invalid characters"},
		{name: "missing", payload: map[string]interface{}{}, wantErr: "Topic is required"},
		{name: "not a string", payload: map[string]interface{}{"topic": 42}, wantErr: "Topic is required"},
		{name: "500 chars", payload: map[string]interface{}{"topic": "  " + fiveHundred + "\n"}, want: fiveHundred},
		{name: "unicode counts runes", payload: map[string]interface{}{"topic": "咖啡机"}, want: "咖啡机"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateScriptInput(body(t, tt.payload))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidationError(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Topic)
		})
	}

	_, err := GenerateScriptInput([]byte(`["not","an","object"]`))
	assert.EqualError(t, err, "Invalid request body")
	_, err = GenerateScriptInput([]byte(`{broken`))
	assert.EqualError(t, err, "Invalid request body")
}

func TestGenerateScriptInputTemplate(t *testing.T) {
	got, err := GenerateScriptInput([]byte(`{"topic":"espresso at home","template_id":" product-demo "}`))
	require.NoError(t, err)
	assert.Equal(t, "product-demo", got.TemplateID)

	_, err = GenerateScriptInput([]byte(`{"topic":"espresso at home","template_id":5}`))
	assert.Error(t, err)
}

func TestStoryboardInput(t *testing.T) {
	got, err := StoryboardInput([]byte(`{"scene":{"sceneNumber":2,"duration":"10 seconds","voiceOver":"Hi","visualDescription":"A cup of coffee"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.Scene{SceneNumber: 2, Duration: "10 seconds", VoiceOver: "Hi", VisualDescription: "A cup of coffee"}, got.Scene)

	tests := map[string]string{
		`{}`: "Scene object is required",
		`{"scene":{"sceneNumber":0,"visualDescription":"x"}}`:   "Valid scene number",
		`{"scene":{"sceneNumber":1.5,"visualDescription":"x"}}`: "Valid scene number",
		`{"scene":{"sceneNumber":"1","visualDescription":"x"}}`: "Valid scene number",
		`{"scene":{"sceneNumber":1,"visualDescription":"   "}}`: "Visual description is required",
	}
	for payload, want := range tests {
		_, err := StoryboardInput([]byte(payload))
		require.Error(t, err, payload)
		assert.Contains(t, err.Error(), want, payload)
	}

	tooLong := map[string]interface{}{"scene": map[string]interface{}{"sceneNumber": 1, "visualDescription": strings.Repeat("v", 2001)}}
	_, err = StoryboardInput(body(t, tooLong))
	assert.EqualError(t, err, "Visual description too long")

	numeric, err := StoryboardInput([]byte(`{"scene":{"sceneNumber":3,"duration":15,"visualDescription":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, "15", numeric.Scene.Duration)
}

func TestStoryboardBatchInput(t *testing.T) {
	got, err := StoryboardBatchInput([]byte(`{"scenes":[{"sceneNumber":1,"visualDescription":"a"},{"sceneNumber":2,"visualDescription":"b"}]}`))
	require.NoError(t, err)
	assert.Len(t, got.Scenes, 2)

	_, err = StoryboardBatchInput([]byte(`{"scenes":[]}`))
	assert.Error(t, err)

	_, err = StoryboardBatchInput([]byte(`{"scenes":[{"sceneNumber":1,"visualDescription":"a"},{"sceneNumber":-1}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenes[1]")
}

func TestShareLinkInput(t *testing.T) {
	const id = "3F2504E0-4F89-11D3-9A0C-0305E82C3301"

	got, err := ShareLinkInput([]byte(`{"project_id":"` + id + `","expires_in_days":null}`))
	require.NoError(t, err)
	assert.Equal(t, id, got.ProjectID)
	assert.Nil(t, got.ExpiresInDays)

	got, err = ShareLinkInput([]byte(`{"project_id":"` + id + `"}`))
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresInDays)

	got, err = ShareLinkInput([]byte(`{"project_id":"` + id + `","expires_in_days":30}`))
	require.NoError(t, err)
	require.NotNil(t, got.ExpiresInDays)
	assert.Equal(t, 30, *got.ExpiresInDays)

	got, err = ShareLinkInput([]byte(`{"project_id":"` + id + `","expires_in_days":7.0}`))
	require.NoError(t, err)
	assert.Equal(t, 7, *got.ExpiresInDays)

	cases := map[string]string{
		`{}`:                               "Project ID is required",
		`{"project_id":"not-a-uuid"}`:      "Invalid project ID format",
		`{"project_id":"` + id + `","expires_in_days":1.5}`:   "must be an integer",
		`{"project_id":"` + id + `","expires_in_days":"7"}`:   "must be an integer",
		`{"project_id":"` + id + `","expires_in_days":0}`:     "between 1 and 365",
		`{"project_id":"` + id + `","expires_in_days":366}`:   "between 1 and 365",
	}
	for payload, want := range cases {
		_, err := ShareLinkInput([]byte(payload))
		require.Error(t, err, payload)
		assert.Contains(t, err.Error(), want, payload)
	}
}

func TestCredentials(t *testing.T) {
	got, err := ValidateCredentials([]byte(`{"email":" Maker@Example.com ","password":"Espresso42"}`))
	require.NoError(t, err)
	assert.Equal(t, "maker@example.com", got.Email)

	cases := map[string]string{
		`{"email":"nope","password":"Espresso42"}`:         "Invalid email",
		`{"email":"a@b.co","password":"Short1"}`:           "at least 8",
		`{"email":"a@b.co","password":"espresso42"}`:       "uppercase",
		`{"email":"a@b.co","password":"ESPRESSO42"}`:       "lowercase",
		`{"email":"a@b.co","password":"EspressoShot"}`:     "number",
	}
	for payload, want := range cases {
		_, err := ValidateCredentials([]byte(payload))
		require.Error(t, err, payload)
		assert.Contains(t, err.Error(), want, payload)
	}
}

func validProject() ProjectInput {
	return ProjectInput{
		Title: "Perfect espresso",
		Topic: "How to make espresso",
		Script: models.VideoScript{
			Title: "Perfect espresso",
			Scenes: []models.Scene{
				{SceneNumber: 1, Duration: "10 seconds", VoiceOver: "Grind", VisualDescription: "Beans"},
			},
		},
		StoryboardImages: []models.StoryboardImage{
			{SceneNumber: 1, ImageURL: "data:image/png;base64,AAAA"},
		},
	}
}

func TestProject(t *testing.T) {
	in := validProject()
	require.NoError(t, Project(&in))

	in = validProject()
	in.Title = ""
	require.NoError(t, Project(&in))
	assert.Equal(t, "Perfect espresso", in.Title)

	in = validProject()
	in.Script.Scenes[0].Duration = ""
	err := Project(&in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script.scenes[0].duration: is required")

	in = validProject()
	in.Script.Scenes = nil
	assert.Error(t, Project(&in))

	in = validProject()
	in.StoryboardImages[0].ImageURL = "ftp://example.com/a.png"
	err = Project(&in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a URL or data URI")

	in = validProject()
	in.Title = strings.Repeat("t", 201)
	err = Project(&in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title: must be at most 200 characters")
}

func TestExportOptions(t *testing.T) {
	const id = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

	got, err := ExportOptions([]byte(`{"resolution":"1080p","fps":"30","aspectRatio":"9:16"}`), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExportOptions{ProjectID: id, Resolution: "1080p", FPS: 30, AspectRatio: "9:16"}, got)

	got, err = ExportOptions([]byte(`{"resolution":"4k","fps":60,"aspectRatio":"1:1"}`), id)
	require.NoError(t, err)
	assert.Equal(t, 60, got.FPS)

	_, err = ExportOptions([]byte(`{"resolution":"8k","fps":30,"aspectRatio":"1:1"}`), id)
	assert.Error(t, err)
	_, err = ExportOptions([]byte(`{"resolution":"720p","fps":25,"aspectRatio":"1:1"}`), id)
	assert.Error(t, err)
	_, err = ExportOptions([]byte(`{"resolution":"720p","fps":24,"aspectRatio":"4:3"}`), id)
	assert.Error(t, err)
	_, err = ExportOptions([]byte(`{"resolution":"720p","fps":24,"aspectRatio":"1:1"}`), "42")
	assert.Error(t, err)
}

func TestAnalyticsEvent(t *testing.T) {
	got, err := AnalyticsEvent([]byte(`{"event_type":"template_used","metadata":{"template":"product-demo"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.EventTemplateUsed, got.EventType)
	assert.Equal(t, "product-demo", got.Metadata["template"])

	_, err = AnalyticsEvent([]byte(`{"event_type":"page_view"}`))
	assert.Error(t, err)
	_, err = AnalyticsEvent([]byte(`{"event_type":"project_saved","project_id":"abc"}`))
	assert.Error(t, err)
}

func TestCommentAndInvite(t *testing.T) {
	c, err := Comment([]byte(`{"content":"  needs a wider shot ","scene_number":2}`))
	require.NoError(t, err)
	assert.Equal(t, "needs a wider shot", c.Content)
	require.NotNil(t, c.SceneNumber)
	assert.Equal(t, 2, *c.SceneNumber)

	_, err = Comment([]byte(`{"content":"   "}`))
	assert.Error(t, err)

	inv, err := Invite([]byte(`{"email":"Editor@Example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, inv.Role)
	assert.Equal(t, "editor@example.com", inv.Email)

	_, err = Invite([]byte(`{"email":"editor@example.com","role":"owner"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role: must be one of admin, editor, viewer")
}
