package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/infra"
	"github.com/devricklin/chat-relay/internal/logger"
)

// Client is the Discord gateway transport
type Client struct {
	token     string
	dg        *discordgo.Session
	onMessage repo.EventHandler
	onLogin   func(name string)
	cancel    context.CancelFunc
	logger    *slog.Logger
}

// NewClient creates a new Discord client
func NewClient(token string) *Client {
	return &Client{token: token, logger: logger.Component("discord")}
}

// Name returns the transport name
func (c *Client) Name() string {
	return "discord"
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler repo.EventHandler) {
	c.onMessage = handler
}

// OnLogin sets the callback invoked with the bot's username once ready
func (c *Client) OnLogin(fn func(name string)) {
	c.onLogin = fn
}

// Start opens the gateway session and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	dg, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	c.dg = dg

	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		c.logger.Info("ready", slog.String("username", r.User.Username))
		if c.onLogin != nil {
			c.onLogin(r.User.Username)
		}
	})
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		c.handleMessage(ctx, s, m)
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	return nil
}

// Stop closes the session
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}

	inbound := toInboundEvent(m.Message, selfID)
	if inbound.Kind == domain.ConversationGroup {
		inbound.ConversationKey = c.channelName(s, m.ChannelID)
	}

	if att := audioAttachment(m.Message); att != nil {
		inbound.Audio = &domain.AudioRef{
			Name: att.Filename,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return infra.Fetch(ctx, att.URL)
			},
		}
	}

	if c.onMessage != nil {
		c.onMessage(ctx, inbound, &speaker{
			session:   s,
			channelID: m.ChannelID,
			key:       inbound.ConversationKey,
		})
	}
}

// toInboundEvent converts a Discord message. User mentions are rendered as @username.
// Group conversation keys default to the channel ID until resolved.
func toInboundEvent(m *discordgo.Message, selfID string) *domain.InboundEvent {
	inbound := &domain.InboundEvent{
		ID:         m.ID,
		SenderName: m.Author.Username,
		Kind:       domain.ConversationDirect,
		RawText:    m.ContentWithMentionsReplaced(),
		Type:       messageType(m),
		IsFromSelf: m.Author.ID == selfID || m.Author.Bot,
		Timestamp:  m.Timestamp,
	}

	inbound.ConversationKey = inbound.SenderName
	if m.GuildID != "" {
		inbound.Kind = domain.ConversationGroup
		inbound.ConversationKey = m.ChannelID
	}
	return inbound
}

func messageType(m *discordgo.Message) domain.MessageType {
	if audioAttachment(m) != nil {
		return domain.MessageTypeAudio
	}
	if len(m.StickerItems) > 0 {
		return domain.MessageTypeEmoticon
	}
	if len(m.Attachments) > 0 {
		ct := m.Attachments[0].ContentType
		switch {
		case strings.HasPrefix(ct, "image/"):
			return domain.MessageTypeImage
		case strings.HasPrefix(ct, "video/"):
			return domain.MessageTypeVideo
		default:
			return domain.MessageTypeAttachment
		}
	}
	if m.Content != "" {
		return domain.MessageTypeText
	}
	return domain.MessageTypeUnknown
}

// audioAttachment returns the first audio attachment, voice messages included
func audioAttachment(m *discordgo.Message) *discordgo.MessageAttachment {
	for _, att := range m.Attachments {
		if strings.HasPrefix(att.ContentType, "audio/") {
			return att
		}
	}
	return nil
}

// channelName resolves a guild channel's name, preferring the state cache
func (c *Client) channelName(s *discordgo.Session, channelID string) string {
	if s.State != nil {
		if ch, err := s.State.Channel(channelID); err == nil && ch.Name != "" {
			return ch.Name
		}
	}
	ch, err := s.Channel(channelID)
	if err != nil || ch.Name == "" {
		c.logger.Warn("failed to get channel name", slog.String("channel_id", channelID), slog.Any("error", err))
		return channelID
	}
	return ch.Name
}

// speaker sends to one Discord channel
type speaker struct {
	session   *discordgo.Session
	channelID string
	key       string
}

func (s *speaker) Key() string { return s.key }

func (s *speaker) Say(ctx context.Context, text string) error {
	if _, err := s.session.ChannelMessageSend(s.channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (s *speaker) SayImage(ctx context.Context, url string) error {
	embed := &discordgo.MessageEmbed{Image: &discordgo.MessageEmbedImage{URL: url}}
	if _, err := s.session.ChannelMessageSendEmbed(s.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send image: %w", err)
	}
	return nil
}
