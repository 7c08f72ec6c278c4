package data

import (
	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/conf"
)

// Repositories contains all repositories
type Repositories struct {
	Conversation repo.ConversationRepo
	Model        repo.ModelRepo
	Attachment   repo.AttachmentRepo
}

// NewRepositories creates all repositories
func NewRepositories(cfg *conf.Config) (*Repositories, error) {
	conversationRepo, err := NewConversationRepo(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	client := NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)

	return &Repositories{
		Conversation: conversationRepo,
		Model: NewModelRepo(client, conversationRepo, ModelOptions{
			Model:           cfg.OpenAI.Model,
			ImageSize:       cfg.OpenAI.ImageSize,
			SystemPrompt:    cfg.OpenAI.SystemPrompt,
			MaxHistoryCount: cfg.OpenAI.MaxHistoryCount,
			Timeout:         cfg.OpenAI.Timeout,
		}),
		Attachment: NewAttachmentRepo(cfg.Storage.AttachmentDir),
	}, nil
}

// Close releases repository resources
func (r *Repositories) Close() error {
	return r.Conversation.Close()
}
