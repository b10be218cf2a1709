// Package chat runs one chat turn end to end: rate check, validation,
// session load, system priming, inference, persistence and analytics.
//
// Steps run sequentially on the caller's goroutine. Nothing is rolled
// back: a rate-limit increment stands even when a later step fails, and
// a failed inference call leaves the stored session exactly as loaded.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/creastat/chatcore"
	"github.com/creastat/chatcore/analytics"
	"github.com/creastat/chatcore/identity"
	"github.com/creastat/chatcore/inference"
	"github.com/creastat/chatcore/ratelimit"
	"github.com/creastat/chatcore/session"
)

// DefaultMaxMessageChars bounds a single user message.
const DefaultMaxMessageChars = 500

// RateLimiter admits or rejects a request for an identity.
type RateLimiter interface {
	Check(ctx context.Context, identity string) (ratelimit.Result, error)
	DailyCap() int
}

// Sessions loads and saves conversations.
type Sessions interface {
	Load(ctx context.Context, id string) (chatcore.Conversation, error)
	Save(ctx context.Context, id string, conv chatcore.Conversation) (chatcore.Conversation, error)
	MaxMessages() int
	TTL() time.Duration
}

// ContextSource returns the digest a new conversation is primed with.
type ContextSource interface {
	Get(ctx context.Context, query string) (string, error)
}

// Recorder stores analytics.
type Recorder interface {
	Record(ctx context.Context, rec analytics.Record) error
	List(ctx context.Context, limit, offset int) (analytics.Page, error)
}

// Deps are the collaborators a Service drives.
type Deps struct {
	Limiter   RateLimiter
	Sessions  Sessions
	Context   ContextSource
	Provider  inference.Provider
	Analytics Recorder
}

// Config holds the turn parameters.
type Config struct {
	MaxMessageChars int
	SystemPrompt    string
	FallbackReply   string
	Params          inference.Params
}

// DefaultConfig returns the free-tier turn parameters.
func DefaultConfig() Config {
	return Config{
		MaxMessageChars: DefaultMaxMessageChars,
		SystemPrompt:    DefaultSystemPrompt,
		FallbackReply:   inference.FallbackReply,
		Params:          inference.DefaultParams(),
	}
}

// TurnRequest is one inbound chat turn.
type TurnRequest struct {
	Message        string
	ConversationID string
	// Context, when non-empty, replaces the cached digest for priming a
	// new conversation. It is not cached.
	Context string
	User    identity.UserInfo
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	ConversationID string
	Response       string
	Remaining      int
	Timestamp      time.Time
}

// Service is the turn orchestrator.
type Service struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. Zero-valued Config fields take their
// defaults.
func NewService(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	switch {
	case deps.Limiter == nil:
		return nil, errors.New("chat: rate limiter is required")
	case deps.Sessions == nil:
		return nil, errors.New("chat: session store is required")
	case deps.Context == nil:
		return nil, errors.New("chat: context source is required")
	case deps.Provider == nil:
		return nil, errors.New("chat: inference provider is required")
	case deps.Analytics == nil:
		return nil, errors.New("chat: analytics recorder is required")
	}

	def := DefaultConfig()
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = def.MaxMessageChars
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = def.FallbackReply
	}
	if cfg.Params == (inference.Params{}) {
		cfg.Params = def.Params
	}

	s := &Service{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitTurn runs one turn. Failures are *Error values.
func (s *Service) SubmitTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	start := s.now()
	who := req.User.Identity()
	if who == "" {
		who = identity.Unknown
	}
	logger := s.logger.With("identity", who)

	// The rate check runs first, so rejected input still spends quota.
	rate, err := s.deps.Limiter.Check(ctx, who)
	if err != nil {
		return TurnResult{}, s.upstream(logger, "rate check failed", err)
	}
	if !rate.Allowed {
		logger.Info("daily cap reached", "reset_at", rate.ResetAt)
		return TurnResult{}, errRateLimited(s.deps.Limiter.DailyCap(), rate.ResetAt)
	}

	if strings.TrimSpace(req.Message) == "" {
		return TurnResult{}, errMessageRequired()
	}
	if utf8.RuneCountInString(req.Message) > s.cfg.MaxMessageChars {
		return TurnResult{}, errMessageTooLong(s.cfg.MaxMessageChars)
	}

	convID := req.ConversationID
	conv := chatcore.Conversation{}
	if convID == "" {
		convID = session.NewID(start)
	} else if conv, err = s.deps.Sessions.Load(ctx, convID); err != nil {
		return TurnResult{}, s.upstream(logger, "session load failed", err, "conversation_id", convID)
	}
	logger = logger.With("conversation_id", convID)

	if len(conv) == 0 {
		digest := req.Context
		if digest == "" {
			if digest, err = s.deps.Context.Get(ctx, req.Message); err != nil {
				return TurnResult{}, s.upstream(logger, "context load failed", err)
			}
		}
		conv = chatcore.AddMessage(conv, chatcore.RoleSystem, RenderSystemPrompt(s.cfg.SystemPrompt, digest))
	}
	conv = chatcore.AddMessage(conv, chatcore.RoleUser, req.Message)

	reply, err := s.deps.Provider.Generate(ctx, conv, s.cfg.Params)
	if err != nil {
		return TurnResult{}, s.upstream(logger, "inference failed", err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = s.cfg.FallbackReply
	}
	elapsed := s.now().Sub(start)
	conv = chatcore.AddMessage(conv, chatcore.RoleAssistant, reply)

	if _, err := s.deps.Sessions.Save(ctx, convID, conv); err != nil {
		return TurnResult{}, s.upstream(logger, "session save failed", err)
	}

	done := s.now()
	rec := analytics.Record{
		UserID:         who,
		UserInfo:       req.User,
		ConversationID: convID,
		Message:        req.Message,
		Response:       reply,
		TokenCount:     chatcore.EstimateTokens(req.Message + reply),
		ResponseTimeMs: elapsed.Milliseconds(),
		Timestamp:      done.UTC().Format(time.RFC3339Nano),
	}
	if err := s.deps.Analytics.Record(ctx, rec); err != nil {
		logger.Warn("failed to record analytics", "error", err)
	}

	return TurnResult{
		ConversationID: convID,
		Response:       reply,
		Remaining:      rate.Remaining,
		Timestamp:      done,
	}, nil
}

// ListAnalytics returns a page of analytics records and the running total.
func (s *Service) ListAnalytics(ctx context.Context, limit, offset int) (analytics.Page, error) {
	page, err := s.deps.Analytics.List(ctx, limit, offset)
	if err != nil {
		return analytics.Page{}, s.upstream(s.logger, "analytics listing failed", err)
	}
	return page, nil
}

func (s *Service) upstream(logger *slog.Logger, msg string, err error, args ...any) *Error {
	logger.Error(msg, append(args, "error", err)...)
	return errUpstream(err)
}
