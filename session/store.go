// Package session persists conversations in the key-value store and
// bounds their growth.
//
// A conversation lives under its id until it has been idle for the
// session TTL; every save rewrites the whole conversation and re-arms
// the expiry. Expired conversations are gone, not archived. Concurrent
// saves to the same id are last-writer-wins.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/creastat/chatcore"
	"github.com/creastat/chatcore/kv"
)

const (
	// collectionName is the logical table conversations are stored in.
	collectionName = "conversations"

	// DefaultMaxMessages is the default N_max.
	DefaultMaxMessages = 10
	// DefaultTTL is the default idle lifetime of a conversation.
	DefaultTTL = time.Hour

	idPrefix = "conv_"
)

// Store loads and saves conversations.
type Store struct {
	conversations *kv.Collection
	maxMessages   int
	tokenBudget   int
	ttl           time.Duration
	logger        *slog.Logger
}

// NewStore creates a session store over store.
func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{
		conversations: kv.NewCollection(store, collectionName),
		maxMessages:   DefaultMaxMessages,
		ttl:           DefaultTTL,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxMessages returns N_max.
func (s *Store) MaxMessages() int { return s.maxMessages }

// TTL returns the idle lifetime of a conversation.
func (s *Store) TTL() time.Duration { return s.ttl }

// Load returns the conversation stored under id. An absent, expired or
// corrupt conversation loads as empty; only store faults are errors.
func (s *Store) Load(ctx context.Context, id string) (chatcore.Conversation, error) {
	raw, found, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if !found {
		return chatcore.Conversation{}, nil
	}

	var conv chatcore.Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		s.logger.Warn("discarding undecodable conversation", "conversation_id", id, "error", err)
		return chatcore.Conversation{}, nil
	}
	if err := conv.Validate(); err != nil {
		s.logger.Warn("discarding malformed conversation", "conversation_id", id, "error", err)
		return chatcore.Conversation{}, nil
	}
	if conv == nil {
		conv = chatcore.Conversation{}
	}
	return conv, nil
}

// Save stores conv under id, keeping only the most recent N_max messages,
// and returns what was stored.
func (s *Store) Save(ctx context.Context, id string, conv chatcore.Conversation) (chatcore.Conversation, error) {
	stored := chatcore.TruncateHistory(conv, s.tokenBudget, s.maxMessages)

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := s.conversations.Put(ctx, id, string(raw), s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	return stored, nil
}

// NewID returns a fresh conversation id of the form
// conv_<unix-millis>_<random>.
func NewID(now time.Time) string {
	return fmt.Sprintf("%s%d_%s", idPrefix, now.UnixMilli(), chatcore.RandomSuffix())
}
