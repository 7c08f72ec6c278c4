package data

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"
)

// openAIClient is the subset of *openai.Client used by the model repository
type openAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// ModelOptions configures the OpenAI model repository
type ModelOptions struct {
	Model           string
	ImageSize       string
	SystemPrompt    string
	MaxHistoryCount int
	Timeout         time.Duration
}

// modelRepo implements the Model repository on an OpenAI-compatible API
type modelRepo struct {
	client        openAIClient
	conversations repo.ConversationRepo
	opts          ModelOptions
}

// NewOpenAIClient creates an OpenAI client; an empty baseURL uses the official endpoint
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewModelRepo creates a new Model repository.
// Completions are built from the conversation history held by conversations.
func NewModelRepo(client *openai.Client, conversations repo.ConversationRepo, opts ModelOptions) repo.ModelRepo {
	return newModelRepo(client, conversations, opts)
}

func newModelRepo(client openAIClient, conversations repo.ConversationRepo, opts ModelOptions) *modelRepo {
	if opts.Model == "" {
		opts.Model = openai.GPT3Dot5Turbo
	}
	if opts.ImageSize == "" {
		opts.ImageSize = openai.CreateImageSize256x256
	}
	return &modelRepo{client: client, conversations: conversations, opts: opts}
}

func (r *modelRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// Complete records the prompt as a user turn and asks the model for a reply
func (r *modelRepo) Complete(ctx context.Context, conversationKey, prompt string) (string, error) {
	if err := r.conversations.AppendUserTurn(ctx, conversationKey, prompt); err != nil {
		return "", err
	}
	conv, err := r.conversations.Get(ctx, conversationKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.opts.Model,
		Messages: r.buildMessages(conv),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// buildMessages puts the system prompt first, then the most recent turns
func (r *modelRepo) buildMessages(conv *domain.Conversation) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	system := r.opts.SystemPrompt
	if conv.HasPromptOverride() {
		system = conv.PromptOverride
	}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, turn := range conv.LastTurns(r.opts.MaxHistoryCount) {
		role := openai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	return messages
}

// GenerateImage generates one image and returns its URL
func (r *modelRepo) GenerateImage(ctx context.Context, _ string, prompt string) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		N:              1,
		Size:           r.opts.ImageSize,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("no image data")
	}
	return resp.Data[0].URL, nil
}

// Transcribe transcribes an audio file with whisper
func (r *modelRepo) Transcribe(ctx context.Context, locale, filePath string) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filePath,
		Language: locale,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}
