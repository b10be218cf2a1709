package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/creastat/chatcore"
)

// DefaultOpenAIModel is served by Workers AI's OpenAI-compatible endpoint.
const DefaultOpenAIModel = "@cf/meta/llama-3.1-8b-instruct"

// OpenAIConfig configures an OpenAI-compatible chat completions provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for compatible gateways
	Model      string
	MaxRetries int
	HTTPClient *http.Client
}

type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI generates replies through the chat completions API.
type OpenAI struct {
	completions chatCompletions
	model       string
}

// NewOpenAI creates an OpenAI provider. MaxRetries defaults to zero: a
// failed call fails the turn.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	client := openai.NewClient(opts...)
	return newOpenAI(&client.Chat.Completions, cfg.Model), nil
}

func newOpenAI(completions chatCompletions, model string) *OpenAI {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{completions: completions, model: model}
}

// Model implements Provider.
func (o *OpenAI) Model() string { return o.model }

// Generate implements Provider.
func (o *OpenAI) Generate(ctx context.Context, conv chatcore.Conversation, params Params) (string, error) {
	completion, err := o.completions.New(ctx, o.buildParams(conv, params))
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrNoChoices)
	}
	return completion.Choices[0].Message.Content, nil
}

func (o *OpenAI) buildParams(conv chatcore.Conversation, params Params) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, msg := range conv {
		switch msg.Role {
		case chatcore.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case chatcore.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: messages,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	if params.Temperature > 0 {
		req.Temperature = openai.Float(params.Temperature)
	}
	if params.TopP > 0 {
		req.TopP = openai.Float(params.TopP)
	}
	return req
}
