// Package inference maps a conversation to a single generated reply.
//
// Providers are called once per turn with no retries and no timeout of
// their own; the caller's context bounds the call.
package inference

import (
	"context"
	"errors"

	"github.com/creastat/chatcore"
)

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9

	// FallbackReply is returned in place of an empty completion.
	FallbackReply = "Xin lỗi, tôi không thể trả lời câu hỏi này lúc này."

	pingMessage   = "test"
	pingMaxTokens = 10
)

var (
	ErrMissingAPIKey = errors.New("api key required")
	ErrNoChoices     = errors.New("provider returned no choices")
)

// Params are the generation parameters sent with every request.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultParams returns the free-tier generation parameters.
func DefaultParams() Params {
	return Params{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// Provider generates the next assistant message for a conversation.
type Provider interface {
	// Generate returns the generated text. An empty string is a valid
	// result; the caller decides what to show instead.
	Generate(ctx context.Context, conv chatcore.Conversation, params Params) (string, error)

	// Model names the model requests are sent to.
	Model() string
}

// Ping sends a minimal request to check that p is reachable.
func Ping(ctx context.Context, p Provider) error {
	conv := chatcore.Conversation{{Role: chatcore.RoleUser, Content: pingMessage}}
	_, err := p.Generate(ctx, conv, Params{MaxTokens: pingMaxTokens})
	return err
}
