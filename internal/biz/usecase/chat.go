package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/logger"
)

// ChatUsecase handles model calls for a conversation
type ChatUsecase struct {
	model         repo.ModelRepo
	conversations repo.ConversationRepo
	logger        *slog.Logger
}

// NewChatUsecase creates a new chat usecase
func NewChatUsecase(model repo.ModelRepo, conversations repo.ConversationRepo) *ChatUsecase {
	return &ChatUsecase{
		model:         model,
		conversations: conversations,
		logger:        logger.Component("chat"),
	}
}

// Reply gets the model reply for prompt and records it in the conversation history.
// An empty reply is reported as domain.ErrEmptyReply.
func (uc *ChatUsecase) Reply(ctx context.Context, key, prompt string) (string, error) {
	reply, err := uc.model.Complete(ctx, key, prompt)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	if reply == "" {
		return "", fmt.Errorf("complete: %w", domain.ErrEmptyReply)
	}

	if err := uc.conversations.AppendAssistantTurn(ctx, key, reply); err != nil {
		uc.logger.Warn("failed to append assistant turn", slog.String("conversation", key), slog.Any("error", err))
	}
	return reply, nil
}

// Image generates an image for prompt and returns its URL
func (uc *ChatUsecase) Image(ctx context.Context, key, prompt string) (string, error) {
	url, err := uc.model.GenerateImage(ctx, key, prompt)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	if url == "" {
		return "", fmt.Errorf("generate image: %w", domain.ErrEmptyReply)
	}
	return url, nil
}

// Transcribe transcribes the audio file at path
func (uc *ChatUsecase) Transcribe(ctx context.Context, locale, path string) (string, error) {
	text, err := uc.model.Transcribe(ctx, locale, path)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("transcribe: %w", domain.ErrEmptyReply)
	}
	return text, nil
}
