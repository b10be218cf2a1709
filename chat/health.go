package chat

import (
	"context"
	"time"

	"github.com/creastat/chatcore/inference"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Limits are the budgets the service enforces.
type Limits struct {
	DailyRequests         int `json:"dailyRequests"`
	MaxTokensPerRequest   int `json:"maxTokensPerRequest"`
	ConversationTimeout   int `json:"conversationTimeout"`
	MaxConversationLength int `json:"maxConversationLength"`
	MaxMessageChars       int `json:"maxMessageChars"`
}

// HealthReport is the result of a health check.
type HealthReport struct {
	Status    string    `json:"status"`
	Model     string    `json:"model,omitempty"`
	Limits    *Limits   `json:"limits,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Limits reports the configured budgets. ConversationTimeout is in seconds.
func (s *Service) Limits() Limits {
	return Limits{
		DailyRequests:         s.deps.Limiter.DailyCap(),
		MaxTokensPerRequest:   s.cfg.Params.MaxTokens,
		ConversationTimeout:   int(s.deps.Sessions.TTL() / time.Second),
		MaxConversationLength: s.deps.Sessions.MaxMessages(),
		MaxMessageChars:       s.cfg.MaxMessageChars,
	}
}

// Health pings the inference provider. An unreachable provider yields an
// unhealthy report and the provider error.
func (s *Service) Health(ctx context.Context) (HealthReport, error) {
	if err := inference.Ping(ctx, s.deps.Provider); err != nil {
		s.logger.Error("health check failed", "model", s.deps.Provider.Model(), "error", err)
		return HealthReport{
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			Timestamp: s.now().UTC(),
		}, errUpstream(err)
	}
	limits := s.Limits()
	return HealthReport{
		Status:    StatusHealthy,
		Model:     s.deps.Provider.Model(),
		Limits:    &limits,
		Timestamp: s.now().UTC(),
	}, nil
}
