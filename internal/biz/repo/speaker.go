package repo

import (
	"context"

	"github.com/devricklin/chat-relay/internal/biz/domain"
)

// Speaker is the conversation an event came from, as seen by the transport.
// For group chats it is the room, for direct chats the contact.
type Speaker interface {
	// Say sends a text message
	Say(ctx context.Context, text string) error

	// SayImage sends an image fetched from url
	SayImage(ctx context.Context, url string) error

	// Key returns the conversation key (room topic or contact name)
	Key() string
}

// EventHandler receives normalized events from a chat transport together with
// the speaker to reply to. It must not block the transport.
type EventHandler func(ctx context.Context, event *domain.InboundEvent, speaker Speaker)
