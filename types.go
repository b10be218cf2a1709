// Package chatcore holds the conversation model shared by the session,
// inference and orchestration packages.
package chatcore

import "fmt"

// Role tags a message with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered sequence of messages. A system message, if
// present, is always the first element.
type Conversation []Message

// HasSystem reports whether the conversation is primed with a system message.
func (c Conversation) HasSystem() bool {
	return len(c) > 0 && c[0].Role == RoleSystem
}

// Validate checks roles and the placement of the system message.
func (c Conversation) Validate() error {
	for i, msg := range c {
		if !msg.Role.Valid() {
			return fmt.Errorf("message %d: %w: %q", i, ErrInvalidRole, msg.Role)
		}
		if msg.Role == RoleSystem && i != 0 {
			return fmt.Errorf("message %d: %w", i, ErrMisplacedSystem)
		}
	}
	return nil
}

// Clone returns a copy that shares no backing array with c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}
