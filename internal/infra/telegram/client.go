package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/infra"
	"github.com/devricklin/chat-relay/internal/logger"
)

// Client is the Telegram transport, receiving updates by long polling
type Client struct {
	token     string
	bot       *tgbotapi.BotAPI
	onMessage repo.EventHandler
	onLogin   func(name string)
	cancel    context.CancelFunc
	logger    *slog.Logger
}

// NewClient creates a new Telegram client
func NewClient(token string) *Client {
	log := logger.Component("telegram")
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log})
	return &Client{token: token, logger: log}
}

// Name returns the transport name
func (c *Client) Name() string {
	return "telegram"
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler repo.EventHandler) {
	c.onMessage = handler
}

// OnLogin sets the callback invoked with the bot's username once connected
func (c *Client) OnLogin(fn func(name string)) {
	c.onLogin = fn
}

// Start polls for updates until ctx is done
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	bot, err := tgbotapi.NewBotAPI(c.token)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	c.bot = bot
	c.logger.Info("authorized", slog.String("username", bot.Self.UserName))
	if c.onLogin != nil {
		c.onLogin(bot.Self.UserName)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := bot.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			c.handleMessage(ctx, update.Message)
		}
	}
}

// Stop stops polling
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	inbound := toInboundEvent(msg, c.bot.Self.ID)

	if inbound.Type == domain.MessageTypeAudio {
		fileID, name := audioFile(msg)
		inbound.Audio = &domain.AudioRef{
			Name: name,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				url, err := c.bot.GetFileDirectURL(fileID)
				if err != nil {
					return nil, fmt.Errorf("resolve file url: %w", err)
				}
				return infra.Fetch(ctx, url)
			},
		}
	}

	if c.onMessage != nil {
		c.onMessage(ctx, inbound, &speaker{
			bot:    c.bot,
			chatID: msg.Chat.ID,
			key:    inbound.ConversationKey,
		})
	}
}

// toInboundEvent converts a Telegram message. Captions stand in for empty text.
func toInboundEvent(msg *tgbotapi.Message, selfID int64) *domain.InboundEvent {
	inbound := &domain.InboundEvent{
		ID:        strconv.FormatInt(msg.Chat.ID, 10) + ":" + strconv.Itoa(msg.MessageID),
		Kind:      domain.ConversationDirect,
		Type:      messageType(msg),
		RawText:   msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
	if inbound.RawText == "" {
		inbound.RawText = msg.Caption
	}
	if msg.From != nil {
		inbound.SenderName = displayName(msg.From)
		inbound.IsFromSelf = msg.From.ID == selfID
	}

	inbound.ConversationKey = inbound.SenderName
	if !msg.Chat.IsPrivate() {
		inbound.Kind = domain.ConversationGroup
		inbound.ConversationKey = msg.Chat.Title
	}
	return inbound
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func messageType(msg *tgbotapi.Message) domain.MessageType {
	switch {
	case msg.Voice != nil, msg.Audio != nil:
		return domain.MessageTypeAudio
	case msg.Photo != nil:
		return domain.MessageTypeImage
	case msg.Sticker != nil, msg.Animation != nil:
		return domain.MessageTypeEmoticon
	case msg.Video != nil, msg.VideoNote != nil:
		return domain.MessageTypeVideo
	case msg.Document != nil:
		return domain.MessageTypeAttachment
	case msg.Contact != nil:
		return domain.MessageTypeContact
	case msg.Location != nil, msg.Venue != nil:
		return domain.MessageTypeLocation
	case msg.Text != "":
		return domain.MessageTypeText
	default:
		return domain.MessageTypeUnknown
	}
}

// audioFile returns the file ID of a voice or audio message and a file name for it
func audioFile(msg *tgbotapi.Message) (string, string) {
	if msg.Voice != nil {
		return msg.Voice.FileID, msg.Voice.FileUniqueID + ".ogg"
	}
	if msg.Audio != nil {
		name := msg.Audio.FileName
		if name == "" {
			name = msg.Audio.FileUniqueID + ".mp3"
		}
		return msg.Audio.FileID, name
	}
	return "", ""
}

// speaker sends to one Telegram chat
type speaker struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	key    string
}

func (s *speaker) Key() string { return s.key }

func (s *speaker) Say(_ context.Context, text string) error {
	if _, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (s *speaker) SayImage(_ context.Context, url string) error {
	if _, err := s.bot.Send(tgbotapi.NewPhoto(s.chatID, tgbotapi.FileURL(url))); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}
