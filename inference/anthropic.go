package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/creastat/chatcore"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicConfig configures a Messages API provider.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	HTTPClient *http.Client
}

type anthropicMessages interface {
	New(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

// Anthropic generates replies through the Messages API.
type Anthropic struct {
	msgs  anthropicMessages
	model string
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
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

	client := anthropicsdk.NewClient(opts...)
	return newAnthropic(&client.Messages, cfg.Model), nil
}

func newAnthropic(msgs anthropicMessages, model string) *Anthropic {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{msgs: msgs, model: model}
}

// Model implements Provider.
func (a *Anthropic) Model() string { return a.model }

// Generate implements Provider. Text blocks of the reply are concatenated.
func (a *Anthropic) Generate(ctx context.Context, conv chatcore.Conversation, params Params) (string, error) {
	msg, err := a.msgs.New(ctx, a.buildParams(conv, params))
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("anthropic: %w", ErrNoChoices)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// buildParams moves the system message into the system blocks. The API
// requires the first message to come from the user, so leading
// assistant messages left over from truncation are dropped.
func (a *Anthropic) buildParams(conv chatcore.Conversation, params Params) anthropicsdk.MessageNewParams {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	req := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.model),
		MaxTokens: int64(maxTokens),
	}

	for _, msg := range conv {
		switch msg.Role {
		case chatcore.RoleSystem:
			if text := strings.TrimSpace(msg.Content); text != "" {
				req.System = append(req.System, anthropicsdk.TextBlockParam{Text: text})
			}
		case chatcore.RoleAssistant:
			if len(req.Messages) == 0 {
				continue
			}
			req.Messages = append(req.Messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		default:
			req.Messages = append(req.Messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		}
	}

	if params.Temperature > 0 {
		req.Temperature = param.NewOpt(params.Temperature)
	}
	if params.TopP > 0 {
		req.TopP = param.NewOpt(params.TopP)
	}
	return req
}
