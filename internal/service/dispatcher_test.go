package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/usecase"
	"github.com/devricklin/chat-relay/internal/logger"
)

type dispatcherFixture struct {
	dispatcher    *Dispatcher
	model         *mockModelRepo
	conversations *mockConversationRepo
	attachments   *mockAttachmentRepo
}

func newDispatcherFixture(t *testing.T, cfg usecase.TriggerConfig) *dispatcherFixture {
	t.Helper()

	identity := domain.NewIdentity()
	require.NoError(t, identity.Set("Bot"))

	model := &mockModelRepo{reply: "hi there"}
	conversations := newMockConversationRepo()
	attachments := &mockAttachmentRepo{}
	trigger := usecase.NewTriggerEvaluator(cfg, identity)
	composer := usecase.NewComposer(cfg.ChatGPTBlockWords, nil)

	return &dispatcherFixture{
		dispatcher: NewDispatcher(
			usecase.NewClassifier(usecase.ClassificationTable{}, cfg.BlockWords),
			trigger,
			usecase.NewCommandRegistry(conversations, composer, false),
			composer,
			usecase.NewChatUsecase(model, conversations),
			attachments,
			usecase.DefaultPolicies(),
		),
		model:         model,
		conversations: conversations,
		attachments:   attachments,
	}
}

func privateEvent(text string) *domain.InboundEvent {
	return &domain.InboundEvent{
		SenderName:      "alice",
		Kind:            domain.ConversationDirect,
		ConversationKey: "alice",
		RawText:         text,
		Type:            domain.MessageTypeText,
	}
}

func groupEvent(text string) *domain.InboundEvent {
	return &domain.InboundEvent{
		SenderName:      "bob",
		Kind:            domain.ConversationGroup,
		ConversationKey: "room",
		RawText:         text,
		Type:            domain.MessageTypeText,
	}
}

func TestDispatcher_PrivateReply(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	s := &mockSpeaker{key: "alice"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("hello"), s))

	assert.Equal(t, []string{"hi there"}, s.Said())
	assert.Equal(t, []string{"hello"}, f.model.prompts)
	assert.Equal(t, []string{"hi there"}, f.conversations.assistant["alice"])
}

func TestDispatcher_PrivateKeyword(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{PrivateTriggerKeyword: "gpt"})
	s := &mockSpeaker{key: "alice"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("hello"), s))
	assert.Empty(t, s.Said())
	assert.Empty(t, f.model.prompts)

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("gpt hello"), s))
	assert.Equal(t, []string{" hello"}, f.model.prompts)
}

func TestDispatcher_GroupMention(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	f.model.reply = "why did the gopher cross the road"
	s := &mockSpeaker{key: "room"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), groupEvent("@Bot  tell me a joke"), s))

	assert.Equal(t, []string{" tell me a joke"}, f.model.prompts)
	assert.Equal(t, []string{"@bob  tell me a joke\n\n------\n why did the gopher cross the road"}, s.Said())
}

func TestDispatcher_GroupWithoutMention(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	s := &mockSpeaker{key: "room"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), groupEvent("tell me a joke"), s))
	assert.Empty(t, s.Said())
	assert.Empty(t, f.model.prompts)
}

func TestDispatcher_GroupRepliesDisabled(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{GroupRepliesDisabled: true})
	s := &mockSpeaker{key: "room"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), groupEvent("@Bot hello"), s))
	assert.Empty(t, s.Said())
	assert.Empty(t, f.model.prompts)
}

func TestDispatcher_ClearCommand(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	s := &mockSpeaker{key: "alice"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("/cmd clear"), s))

	assert.Equal(t, []string{"alice"}, f.conversations.cleared)
	assert.Empty(t, s.Said())
	assert.Empty(t, f.model.prompts)
}

func TestDispatcher_CommandInGroupWithoutMention(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	s := &mockSpeaker{key: "room"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), groupEvent("/cmd prompt be brief"), s))
	assert.Equal(t, "be brief", f.conversations.prompts["room"])
}

func TestDispatcher_ChatGPTBlockWord(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{ChatGPTBlockWords: []string{"secret"}})
	f.model.reply = "the secret is 42"
	s := &mockSpeaker{key: "alice"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("tell me"), s))
	assert.Empty(t, s.Said())
}

func TestDispatcher_BlockWordDropsInbound(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{BlockWords: []string{"spam"}})
	s := &mockSpeaker{key: "alice"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("buy spam now"), s))
	assert.Empty(t, s.Said())
	assert.Empty(t, f.model.prompts)
}

func TestDispatcher_CompleteFailureFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"error", "", errors.New("timeout")},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t, usecase.TriggerConfig{})
			f.model.reply = tt.reply
			f.model.replyErr = tt.err
			s := &mockSpeaker{key: "alice"}

			require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("hello"), s))
			assert.Equal(t, []string{usecase.FallbackMessage}, s.Said())
		})
	}
}

func TestDispatcher_SendErrorPropagates(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	s := &mockSpeaker{key: "alice", sayErr: errors.New("offline")}

	err := f.dispatcher.OnMessage(context.Background(), privateEvent("hello"), s)
	assert.Error(t, err)
}

func TestDispatcher_Image(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	f.model.imageURL = "https://img.example/cat.png"
	s := &mockSpeaker{key: "alice"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("/img a cat"), s))
	assert.Equal(t, []string{" a cat"}, f.model.prompts)
	assert.Equal(t, []string{"https://img.example/cat.png"}, s.images)
	assert.Empty(t, s.Said())
}

func TestDispatcher_ImageFailureFallsBack(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	f.model.imageErr = errors.New("quota")
	s := &mockSpeaker{key: "alice"}

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), privateEvent("/img a cat"), s))
	assert.Empty(t, s.images)
	assert.Equal(t, []string{usecase.FallbackMessage}, s.Said())
}

func TestDispatcher_Audio(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	f.model.transcript = "hello from voice"
	s := &mockSpeaker{key: "alice"}

	event := privateEvent("")
	event.Type = domain.MessageTypeAudio
	event.Audio = audioRef("voice.ogg", "OggS")

	require.NoError(t, f.dispatcher.OnMessage(context.Background(), event, s))
	assert.Equal(t, "OggS", f.attachments.saved["voice.ogg"])
	assert.Equal(t, []string{"/tmp/voice.ogg"}, f.model.files)
	assert.Equal(t, []string{"hello from voice"}, s.Said())
}

func TestDispatcher_AudioFailuresDrop(t *testing.T) {
	t.Run("transcribe", func(t *testing.T) {
		f := newDispatcherFixture(t, usecase.TriggerConfig{})
		f.model.transErr = errors.New("whisper down")
		s := &mockSpeaker{key: "alice"}

		event := privateEvent("")
		event.Type = domain.MessageTypeAudio
		event.Audio = audioRef("voice.ogg", "OggS")

		require.NoError(t, f.dispatcher.OnMessage(context.Background(), event, s))
		assert.Empty(t, s.Said())
	})

	t.Run("save", func(t *testing.T) {
		f := newDispatcherFixture(t, usecase.TriggerConfig{})
		f.attachments.err = errors.New("disk full")
		s := &mockSpeaker{key: "alice"}

		event := privateEvent("")
		event.Type = domain.MessageTypeAudio
		event.Audio = audioRef("voice.ogg", "OggS")

		require.NoError(t, f.dispatcher.OnMessage(context.Background(), event, s))
		assert.Empty(t, s.Said())
		assert.Empty(t, f.model.files)
	})
}

func TestDispatcher_NonsenseDropped(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	s := &mockSpeaker{key: "alice"}

	self := privateEvent("hello")
	self.IsFromSelf = true
	image := privateEvent("hello")
	image.Type = domain.MessageTypeImage

	for _, event := range []*domain.InboundEvent{self, image} {
		require.NoError(t, f.dispatcher.OnMessage(context.Background(), event, s))
	}
	assert.Empty(t, s.Said())
	assert.Empty(t, f.model.prompts)
}

func TestDispatcher_LogsWithEventLogger(t *testing.T) {
	f := newDispatcherFixture(t, usecase.TriggerConfig{})
	f.model.replyErr = errors.New("timeout")
	s := &mockSpeaker{key: "alice"}

	var buf bytes.Buffer
	eventLog := slog.New(slog.NewTextHandler(&buf, nil)).With(slog.String("event_id", "evt-1"))
	ctx := logger.WithContext(context.Background(), eventLog)

	require.NoError(t, f.dispatcher.OnMessage(ctx, privateEvent("hello"), s))

	out := buf.String()
	assert.Contains(t, out, "collaborator call failed")
	assert.Contains(t, out, "event_id=evt-1")
	assert.Contains(t, out, "component=dispatcher")
}
