package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/devricklin/chat-relay/internal/biz/domain"
)

type mockSpeaker struct {
	mu      sync.Mutex
	key     string
	said    []string
	images  []string
	sayErr  error
	sayCall int
}

func (m *mockSpeaker) Say(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sayCall++
	if m.sayErr != nil {
		return m.sayErr
	}
	m.said = append(m.said, text)
	return nil
}

func (m *mockSpeaker) SayImage(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, url)
	return nil
}

func (m *mockSpeaker) Key() string { return m.key }

type mockConversationRepo struct {
	prompts   map[string]string
	cleared   []string
	user      map[string][]string
	assistant map[string][]string
	err       error
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{
		prompts:   make(map[string]string),
		user:      make(map[string][]string),
		assistant: make(map[string][]string),
	}
}

func (m *mockConversationRepo) Get(_ context.Context, key string) (*domain.Conversation, error) {
	return &domain.Conversation{Key: key, PromptOverride: m.prompts[key]}, m.err
}

func (m *mockConversationRepo) List(context.Context) ([]*domain.Conversation, error) {
	return nil, m.err
}

func (m *mockConversationRepo) SetPromptOverride(_ context.Context, key, prompt string) error {
	m.prompts[key] = prompt
	return m.err
}

func (m *mockConversationRepo) ClearHistory(_ context.Context, key string) error {
	m.cleared = append(m.cleared, key)
	return m.err
}

func (m *mockConversationRepo) AppendUserTurn(_ context.Context, key, content string) error {
	m.user[key] = append(m.user[key], content)
	return m.err
}

func (m *mockConversationRepo) AppendAssistantTurn(_ context.Context, key, content string) error {
	m.assistant[key] = append(m.assistant[key], content)
	return m.err
}

func (m *mockConversationRepo) PruneBefore(context.Context, time.Time) (int64, error) {
	return 0, m.err
}

func (m *mockConversationRepo) Close() error { return nil }

type mockModelRepo struct {
	reply      string
	replyErr   error
	imageURL   string
	imageErr   error
	transcript string
	transErr   error
	prompts    []string
}

func (m *mockModelRepo) Complete(_ context.Context, _ string, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.replyErr
}

func (m *mockModelRepo) GenerateImage(_ context.Context, _ string, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.imageURL, m.imageErr
}

func (m *mockModelRepo) Transcribe(context.Context, string, string) (string, error) {
	return m.transcript, m.transErr
}
