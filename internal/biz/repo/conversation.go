package repo

import (
	"context"
	"time"

	"github.com/devricklin/chat-relay/internal/biz/domain"
)

// ConversationRepo is the conversation persistence interface.
// Each call is atomic on its own; callers hold no locks across calls.
type ConversationRepo interface {
	// Get gets a conversation; returns an empty conversation when the key is unknown
	Get(ctx context.Context, key string) (*domain.Conversation, error)

	// List lists all known conversations without their turns
	List(ctx context.Context) ([]*domain.Conversation, error)

	// SetPromptOverride sets the custom prompt of a conversation
	SetPromptOverride(ctx context.Context, key, prompt string) error

	// ClearHistory deletes all turns of a conversation
	ClearHistory(ctx context.Context, key string) error

	// AppendUserTurn appends a user turn
	AppendUserTurn(ctx context.Context, key, content string) error

	// AppendAssistantTurn appends an assistant turn
	AppendAssistantTurn(ctx context.Context, key, content string) error

	// PruneBefore deletes turns created before the specified time
	PruneBefore(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
