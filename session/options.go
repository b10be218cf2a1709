package session

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a session Store.
type Option func(*Store)

// WithMaxMessages sets N_max, the number of most recent messages kept.
func WithMaxMessages(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

// WithTTL sets the sliding session lifetime, re-armed by every save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTokenBudget additionally bounds the stored conversation by its
// estimated token count. Zero disables the bound.
func WithTokenBudget(tokens int) Option {
	return func(s *Store) {
		s.tokenBudget = tokens
	}
}

// WithLogger sets the logger used to report discarded sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}
