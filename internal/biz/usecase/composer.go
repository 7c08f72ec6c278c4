package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/logger"
)

// SingleMessageMaxSize is the largest outbound message the transports accept, in characters
const SingleMessageMaxSize = 500

// Composer sends model output back to a conversation
type Composer struct {
	blockWords []string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewComposer creates a new composer.
// limiter paces consecutive slices; nil disables pacing.
func NewComposer(chatgptBlockWords []string, limiter *rate.Limiter) *Composer {
	return &Composer{
		blockWords: chatgptBlockWords,
		limiter:    limiter,
		logger:     logger.Component("composer"),
	}
}

// TrySay sends message to the speaker in slices of SingleMessageMaxSize.
// Messages containing a chatgpt block word are dropped. Send errors are returned as is.
func (c *Composer) TrySay(ctx context.Context, speaker repo.Speaker, message string) error {
	if word, ok := containsAny(message, c.blockWords); ok {
		c.logger.Info("blocked reply", slog.String("word", word), slog.String("conversation", speaker.Key()))
		return nil
	}

	for _, slice := range SplitMessage(message, SingleMessageMaxSize) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("wait for send slot: %w", err)
			}
		}
		if err := speaker.Say(ctx, slice); err != nil {
			return err
		}
	}
	return nil
}

// SplitMessage splits message into consecutive slices of at most size characters.
// The last slice holds the remainder; an empty message yields one empty slice.
func SplitMessage(message string, size int) []string {
	runes := []rune(message)
	var slices []string
	for len(runes) > size {
		slices = append(slices, string(runes[:size]))
		runes = runes[size:]
	}
	return append(slices, string(runes))
}
