package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/devricklin/chat-relay/internal/biz/domain"
)

type mockSpeaker struct {
	mu     sync.Mutex
	key    string
	said   []string
	images []string
	sayErr error
}

func (m *mockSpeaker) Say(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *mockSpeaker) Said() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.said...)
}

type mockConversationRepo struct {
	mu        sync.Mutex
	prompts   map[string]string
	cleared   []string
	assistant map[string][]string
	pruned    []time.Time
	pruneN    int64
	err       error
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{
		prompts:   make(map[string]string),
		assistant: make(map[string][]string),
	}
}

func (m *mockConversationRepo) Get(_ context.Context, key string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.Conversation{Key: key, PromptOverride: m.prompts[key]}, m.err
}

func (m *mockConversationRepo) List(context.Context) ([]*domain.Conversation, error) {
	return nil, m.err
}

func (m *mockConversationRepo) SetPromptOverride(_ context.Context, key, prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[key] = prompt
	return m.err
}

func (m *mockConversationRepo) ClearHistory(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, key)
	return m.err
}

func (m *mockConversationRepo) AppendUserTurn(context.Context, string, string) error {
	return m.err
}

func (m *mockConversationRepo) AppendAssistantTurn(_ context.Context, key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assistant[key] = append(m.assistant[key], content)
	return m.err
}

func (m *mockConversationRepo) PruneBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, before)
	return m.pruneN, m.err
}

func (m *mockConversationRepo) Close() error { return nil }

type mockModelRepo struct {
	mu         sync.Mutex
	reply      string
	replyErr   error
	imageURL   string
	imageErr   error
	transcript string
	transErr   error
	prompts    []string
	files      []string
}

func (m *mockModelRepo) Complete(_ context.Context, _, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.replyErr
}

func (m *mockModelRepo) GenerateImage(_ context.Context, _, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.imageURL, m.imageErr
}

func (m *mockModelRepo) Transcribe(_ context.Context, _, filePath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, filePath)
	return m.transcript, m.transErr
}

type mockAttachmentRepo struct {
	saved map[string]string
	err   error
}

func (m *mockAttachmentRepo) Save(_ context.Context, name string, content io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = make(map[string]string)
	}
	m.saved[name] = string(b)
	return "/tmp/" + name, nil
}

func audioRef(name, body string) *domain.AudioRef {
	return &domain.AudioRef{
		Name: name,
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}
