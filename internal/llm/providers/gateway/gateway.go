// internal/llm/providers/gateway/gateway.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/llm"
)

// Name 注册名
const Name = "gateway"

const (
	defaultBaseURL     = "https://ai.gateway.lovable.dev/v1"
	defaultScriptModel = "google/gemini-2.5-flash"
	defaultImageModel  = "google/gemini-2.5-flash-image-preview"
)

func init() {
	llm.Register(Name, func() llm.Provider {
		return &Provider{
			baseURL:     defaultBaseURL,
			scriptModel: defaultScriptModel,
			imageModel:  defaultImageModel,
		}
	})
}

// Provider OpenAI 兼容的 AI 网关
type Provider struct {
	client      openai.Client
	baseURL     string
	scriptModel string
	imageModel  string
}

// Initialize 配置项: api_key, base_url, script_model, image_model, max_retries
func (p *Provider) Initialize(config map[string]string) error {
	apiKey := strings.TrimSpace(config["api_key"])
	if apiKey == "" {
		return llm.ErrMissingAPIKey
	}
	if v := strings.TrimSpace(config["base_url"]); v != "" {
		p.baseURL = strings.TrimRight(v, "/")
	}
	if v := config["script_model"]; v != "" {
		p.scriptModel = v
	}
	if v := config["image_model"]; v != "" {
		p.imageModel = v
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(p.baseURL + "/"),
	}
	if v, err := strconv.Atoi(config["max_retries"]); err == nil && v >= 0 {
		opts = append(opts, option.WithMaxRetries(v))
	}
	p.client = openai.NewClient(opts...)
	return nil
}

func (p *Provider) GetName() string {
	return Name
}

func (p *Provider) GetSupportedModels() []string {
	return []string{p.scriptModel, p.imageModel}
}

// CompleteText 调用 chat completions 生成文本
func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.scriptModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    model,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, upstreamError("AI generation failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewUpstreamError("AI generation returned no choices", nil)
	}

	choice := resp.Choices[0]
	return &llm.CompletionResponse{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		TokensUsed:   int(resp.Usage.TotalTokens),
		PromptTokens: int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		ModelName:    resp.Model,
		ProviderName: Name,
	}, nil
}

// GenerateImage 以 image+text 模态请求图像，结果在 message.images 中
func (p *Provider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = p.imageModel
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Model: model,
	}, option.WithJSONSet("modalities", []string{"image", "text"}))
	if err != nil {
		return nil, upstreamError("Image generation failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewUpstreamError("No image URL in response", nil)
	}

	url, ok := llm.ExtractImageURL(resp.Choices[0].Message.RawJSON())
	if !ok {
		return nil, apperrors.NewUpstreamError("No image URL in response", nil)
	}
	return &llm.ImageResponse{URL: url, ModelName: resp.Model}, nil
}

// upstreamError 网关返回非 2xx 时带上状态码
func upstreamError(prefix string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apperrors.NewUpstreamError(fmt.Sprintf("%s: %d", prefix, apiErr.StatusCode), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUpstreamError(prefix+": request timed out", err)
	}
	return apperrors.NewUpstreamError(prefix, err)
}
