package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/llm"
)

func fakeGateway(t *testing.T, status int, message map[string]interface{}, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "google/gemini-2.5-flash",
			"choices": []interface{}{map[string]interface{}{
				"index":         0,
				"finish_reason": "stop",
				"message":       message,
			}},
			"usage": map[string]interface{}{"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7},
		})
	}))
}

func newProvider(t *testing.T, url string) llm.Provider {
	t.Helper()
	p, err := llm.GetProvider(Name, map[string]string{
		"api_key":     "test-key",
		"base_url":    url,
		"max_retries": "0",
	})
	require.NoError(t, err)
	return p
}

func TestInitializeRequiresKey(t *testing.T) {
	_, err := llm.GetProvider(Name, map[string]string{})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestCompleteText(t *testing.T) {
	var body map[string]interface{}
	srv := fakeGateway(t, http.StatusOK, map[string]interface{}{"role": "assistant", "content": `{"title":"x"}`}, &body)
	defer srv.Close()

	resp, err := newProvider(t, srv.URL).CompleteText(context.Background(), llm.CompletionRequest{
		SystemPrompt: "system",
		Prompt:       "Create a video script about: coffee",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, resp.Text)
	assert.Equal(t, 7, resp.TokensUsed)

	assert.Equal(t, defaultScriptModel, body["model"])
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "Create a video script about: coffee", messages[1].(map[string]interface{})["content"])
}

func TestCompleteTextUpstreamFailure(t *testing.T) {
	srv := fakeGateway(t, http.StatusBadGateway, nil, nil)
	defer srv.Close()

	_, err := newProvider(t, srv.URL).CompleteText(context.Background(), llm.CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamError(err))
	assert.Contains(t, err.Error(), "AI generation failed: 502")
}

func TestGenerateImage(t *testing.T) {
	var body map[string]interface{}
	srv := fakeGateway(t, http.StatusOK, map[string]interface{}{
		"role":    "assistant",
		"content": "",
		"images": []interface{}{map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]interface{}{"url": "data:image/png;base64,iVBORw0KGgo="},
		}},
	}, &body)
	defer srv.Close()

	resp, err := newProvider(t, srv.URL).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "frame"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", resp.URL)
	assert.Equal(t, defaultImageModel, body["model"])
	assert.Equal(t, []interface{}{"image", "text"}, body["modalities"])
}

func TestGenerateImageWithoutImage(t *testing.T) {
	srv := fakeGateway(t, http.StatusOK, map[string]interface{}{"role": "assistant", "content": "sorry"}, nil)
	defer srv.Close()

	_, err := newProvider(t, srv.URL).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "frame"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamError(err))
	assert.Contains(t, err.Error(), "No image URL in response")
}
