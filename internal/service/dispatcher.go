package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/biz/usecase"
	"github.com/devricklin/chat-relay/internal/logger"
)

// ImagePrefix starts an image generation request
const ImagePrefix = "/img"

// groupReplySeparator separates the echoed question from the model reply
const groupReplySeparator = "\n\n------\n "

// Dispatcher routes inbound events to commands, image generation or the model
type Dispatcher struct {
	classifier  *usecase.Classifier
	trigger     *usecase.TriggerEvaluator
	cleaner     *usecase.Cleaner
	commands    *usecase.CommandRegistry
	composer    *usecase.Composer
	chat        *usecase.ChatUsecase
	attachments repo.AttachmentRepo
	policies    usecase.PolicyTable
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	classifier *usecase.Classifier,
	trigger *usecase.TriggerEvaluator,
	commands *usecase.CommandRegistry,
	composer *usecase.Composer,
	chat *usecase.ChatUsecase,
	attachments repo.AttachmentRepo,
	policies usecase.PolicyTable,
) *Dispatcher {
	return &Dispatcher{
		classifier:  classifier,
		trigger:     trigger,
		cleaner:     usecase.NewCleaner(trigger),
		commands:    commands,
		composer:    composer,
		chat:        chat,
		attachments: attachments,
		policies:    policies,
	}
}

// OnMessage handles one inbound event. The first matching branch wins.
// Collaborator failures are handled by the policy table; send errors are returned.
func (d *Dispatcher) OnMessage(ctx context.Context, event *domain.InboundEvent, speaker repo.Speaker) error {
	log := eventLogger(ctx)
	log.Info("message",
		slog.String("kind", string(event.Kind)),
		slog.String("sender", event.SenderName),
		slog.String("type", event.Type.String()),
		slog.String("text", event.RawText),
	)

	if d.classifier.IsNonsense(event) {
		return nil
	}

	if event.Type == domain.MessageTypeAudio {
		return d.onAudio(ctx, event, speaker)
	}

	rawText := event.RawText
	if strings.HasPrefix(rawText, usecase.CommandPrefix) {
		log.Info("command", slog.String("text", rawText))
		return d.commands.Run(ctx, speaker, strings.TrimPrefix(rawText, usecase.CommandPrefix))
	}

	if strings.HasPrefix(rawText, ImagePrefix) {
		log.Info("image", slog.String("text", rawText))
		return d.onImage(ctx, speaker, strings.TrimPrefix(rawText, ImagePrefix))
	}

	private := event.IsPrivate()
	if !d.trigger.ShouldTrigger(rawText, private) {
		return nil
	}
	text := d.cleaner.Clean(rawText, private)

	if private {
		return d.onPrivateMessage(ctx, speaker, text)
	}
	if d.trigger.Config().GroupRepliesDisabled {
		return nil
	}
	return d.onGroupMessage(ctx, speaker, event.SenderName, text)
}

func (d *Dispatcher) onPrivateMessage(ctx context.Context, speaker repo.Speaker, text string) error {
	reply, err := d.chat.Reply(ctx, speaker.Key(), text)
	if err != nil {
		return d.fail(ctx, speaker, usecase.CallComplete, err)
	}
	return d.composer.TrySay(ctx, speaker, reply)
}

func (d *Dispatcher) onGroupMessage(ctx context.Context, speaker repo.Speaker, sender, text string) error {
	reply, err := d.chat.Reply(ctx, speaker.Key(), text)
	if err != nil {
		return d.fail(ctx, speaker, usecase.CallComplete, err)
	}
	return d.composer.TrySay(ctx, speaker, fmt.Sprintf("@%s %s%s%s", sender, text, groupReplySeparator, reply))
}

func (d *Dispatcher) onImage(ctx context.Context, speaker repo.Speaker, prompt string) error {
	url, err := d.chat.Image(ctx, speaker.Key(), prompt)
	if err != nil {
		return d.fail(ctx, speaker, usecase.CallGenerateImage, err)
	}
	return speaker.SayImage(ctx, url)
}

// onAudio saves the audio, transcribes it and replies with the text
func (d *Dispatcher) onAudio(ctx context.Context, event *domain.InboundEvent, speaker repo.Speaker) error {
	if event.Audio == nil || event.Audio.Open == nil {
		return d.fail(ctx, speaker, usecase.CallSaveAttachment, errors.New("no audio content"))
	}

	path, err := d.saveAudio(ctx, event.Audio)
	if err != nil {
		return d.fail(ctx, speaker, usecase.CallSaveAttachment, err)
	}

	text, err := d.chat.Transcribe(ctx, "", path)
	if err != nil {
		return d.fail(ctx, speaker, usecase.CallTranscribe, err)
	}
	return d.composer.TrySay(ctx, speaker, text)
}

func (d *Dispatcher) saveAudio(ctx context.Context, audio *domain.AudioRef) (string, error) {
	content, err := audio.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer content.Close()

	return d.attachments.Save(ctx, audio.Name, content)
}

// fail applies the failure policy of call
func (d *Dispatcher) fail(ctx context.Context, speaker repo.Speaker, call usecase.Call, err error) error {
	policy := d.policies.Resolve(call)
	eventLogger(ctx).Warn("collaborator call failed",
		slog.String("call", string(call)),
		slog.Any("error", err),
	)
	if policy.Outcome != usecase.OutcomeFallback {
		return nil
	}
	return d.composer.TrySay(ctx, speaker, policy.Message)
}

// eventLogger returns the event-scoped logger carried by ctx
func eventLogger(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx).With(slog.String("component", "dispatcher"))
}
