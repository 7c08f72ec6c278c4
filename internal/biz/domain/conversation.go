package domain

import (
	"errors"
	"time"
)

// ErrEmptyReply is returned when a collaborator answers with nothing
var ErrEmptyReply = errors.New("empty reply")

// Role is the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation history
type Turn struct {
	ID        int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Conversation is the persisted state of a conversation, keyed by conversation key
type Conversation struct {
	Key            string
	PromptOverride string
	Turns          []Turn
	UpdatedAt      time.Time
}

// HasPromptOverride checks if a custom prompt was set with /cmd prompt
func (c *Conversation) HasPromptOverride() bool {
	return c.PromptOverride != ""
}

// LastTurns returns at most n of the most recent turns, oldest first
func (c *Conversation) LastTurns(n int) []Turn {
	if n <= 0 || len(c.Turns) <= n {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}
