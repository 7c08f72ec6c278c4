package repo

import "context"

// ModelRepo is the language-model backend interface
type ModelRepo interface {
	// Complete gets a reply for the prompt in the context of the conversation.
	// An empty reply signals failure just like an error does.
	Complete(ctx context.Context, conversationKey, prompt string) (string, error)

	// GenerateImage generates an image and returns its URL
	GenerateImage(ctx context.Context, conversationKey, prompt string) (string, error)

	// Transcribe transcribes an audio file
	Transcribe(ctx context.Context, locale, filePath string) (string, error)
}
