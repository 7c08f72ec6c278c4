package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/logger"
)

// Client is the Feishu transport
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage repo.EventHandler
	onLogin   func(name string)
	cancel    context.CancelFunc
	logger    *slog.Logger

	// chatID -> group name, openID -> user name
	chatNames sync.Map
	userNames sync.Map
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		logger:    logger.Component("feishu"),
	}
}

// Name returns the transport name
func (c *Client) Name() string {
	return "feishu"
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler repo.EventHandler) {
	c.onMessage = handler
}

// OnLogin sets the callback invoked with the bot's display name once connected
func (c *Client) OnLogin(fn func(name string)) {
	c.onLogin = fn
}

// Start connects to Feishu via WebSocket and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.larkCli = lark.NewClient(c.appID, c.appSecret, lark.WithLogger(newLarkLogger(c.logger)))

	name, err := c.fetchBotName(ctx)
	if err != nil {
		return fmt.Errorf("fetch bot info: %w", err)
	}
	if c.onLogin != nil {
		c.onLogin(name)
	}

	// Must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(ctx, event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogger(newLarkLogger(c.logger)),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info("starting websocket connection")

	// The SDK's Start never returns once connected
	errCh := make(chan error, 1)
	go func() { errCh <- c.wsCli.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// fetchBotName gets the app name shown to users
func (c *Client) fetchBotName(ctx context.Context) (string, error) {
	resp, err := c.larkCli.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return "", err
	}

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(resp.RawBody, &botResult); err != nil {
		return "", fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return "", fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.logger.Info("bot info", slog.String("open_id", botResult.Bot.OpenID), slog.String("name", botResult.Bot.AppName))
	return botResult.Bot.AppName, nil
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(ctx context.Context, event *larkim.P2MessageReceiveV1) {
	inbound, ok := toInboundEvent(event)
	if !ok {
		return
	}

	chatID := *event.Event.Message.ChatId
	openID := senderOpenID(event)

	inbound.SenderName = c.userName(ctx, chatID, openID)
	inbound.ConversationKey = inbound.SenderName
	if inbound.Kind == domain.ConversationGroup {
		inbound.ConversationKey = c.chatName(ctx, chatID)
	}

	if inbound.Type == domain.MessageTypeAudio {
		msgID, fileKey := inbound.ID, audioFileKey(*event.Event.Message.Content)
		inbound.Audio = &domain.AudioRef{
			Name: fileKey + ".ogg",
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return c.downloadResource(ctx, msgID, fileKey)
			},
		}
	}

	if c.onMessage != nil {
		c.onMessage(ctx, inbound, &speaker{
			client: c,
			chatID: chatID,
			key:    inbound.ConversationKey,
		})
	}
}

// toInboundEvent converts a Feishu event. Mention placeholders are replaced with names.
func toInboundEvent(event *larkim.P2MessageReceiveV1) (*domain.InboundEvent, bool) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil, false
	}
	raw := event.Event.Message
	if raw.ChatId == nil || raw.MessageId == nil || raw.MessageType == nil {
		return nil, false
	}

	inbound := &domain.InboundEvent{
		ID:   *raw.MessageId,
		Kind: domain.ConversationDirect,
		Type: messageType(*raw.MessageType),
	}
	if raw.ChatType != nil && *raw.ChatType == "group" {
		inbound.Kind = domain.ConversationGroup
	}
	if s := event.Event.Sender; s != nil && s.SenderType != nil && *s.SenderType == "app" {
		inbound.IsFromSelf = true
	}
	if raw.CreateTime != nil {
		inbound.Timestamp = parseMillis(*raw.CreateTime)
	}

	mentionMap := make(map[string]string)
	for _, mention := range raw.Mentions {
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	content := ""
	if raw.Content != nil {
		content = *raw.Content
	}
	switch *raw.MessageType {
	case larkim.MsgTypeText:
		inbound.RawText = parseTextContent(content, mentionMap)
	case larkim.MsgTypePost:
		inbound.RawText = parsePostContent(content, mentionMap)
	}
	return inbound, true
}

// messageType maps Feishu message types. Rich text is flattened to text.
func messageType(t string) domain.MessageType {
	switch t {
	case larkim.MsgTypeText, larkim.MsgTypePost:
		return domain.MessageTypeText
	case larkim.MsgTypeAudio:
		return domain.MessageTypeAudio
	case larkim.MsgTypeImage:
		return domain.MessageTypeImage
	case larkim.MsgTypeFile:
		return domain.MessageTypeAttachment
	case larkim.MsgTypeMedia:
		return domain.MessageTypeVideo
	case larkim.MsgTypeSticker:
		return domain.MessageTypeEmoticon
	case larkim.MsgTypeShareUser, larkim.MsgTypeShareChat:
		return domain.MessageTypeContact
	case "location":
		return domain.MessageTypeLocation
	case "merge_forward":
		return domain.MessageTypeChatHistory
	default:
		return domain.MessageTypeUnknown
	}
}

func senderOpenID(event *larkim.P2MessageReceiveV1) string {
	s := event.Event.Sender
	if s == nil || s.SenderId == nil || s.SenderId.OpenId == nil {
		return ""
	}
	return *s.SenderId.OpenId
}

// parseTextContent extracts text from a text message
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text message to lines of text
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var b strings.Builder
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				b.WriteString(elem.Text)
			case "at":
				if name, ok := mentionMap[elem.UserID]; ok {
					b.WriteString("@" + name)
				} else if elem.UserID != "" {
					b.WriteString("@" + elem.UserID)
				}
			}
		}
		if b.Len() > 0 {
			lines = append(lines, b.String())
		}
	}
	return replaceMentions(strings.Join(lines, "\n"), mentionMap)
}

// audioFileKey extracts the file key from an audio message
func audioFileKey(content string) string {
	var parsed struct {
		FileKey string `json:"file_key"`
	}
	_ = json.Unmarshal([]byte(content), &parsed)
	return parsed.FileKey
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, etc.) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

// chatName resolves a group's name, falling back to its ID
func (c *Client) chatName(ctx context.Context, chatID string) string {
	if v, ok := c.chatNames.Load(chatID); ok {
		return v.(string)
	}

	req := larkim.NewGetChatReqBuilder().ChatId(chatID).Build()
	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil || !resp.Success() || resp.Data.Name == nil || *resp.Data.Name == "" {
		c.logger.Warn("failed to get chat name", slog.String("chat_id", chatID), slog.Any("error", err))
		return chatID
	}
	c.chatNames.Store(chatID, *resp.Data.Name)
	return *resp.Data.Name
}

// userName resolves a user's name from the chat member list, falling back to the open_id
func (c *Client) userName(ctx context.Context, chatID, openID string) string {
	if openID == "" {
		return ""
	}
	if v, ok := c.userNames.Load(openID); ok {
		return v.(string)
	}

	var pageToken string
	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil || !resp.Success() {
			c.logger.Warn("failed to get chat members", slog.String("chat_id", chatID), slog.Any("error", err))
			return openID
		}
		for _, item := range resp.Data.Items {
			if item.MemberId != nil && item.Name != nil {
				c.userNames.Store(*item.MemberId, *item.Name)
			}
		}
		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	if v, ok := c.userNames.Load(openID); ok {
		return v.(string)
	}
	return openID
}

// parseMillis parses a millisecond Unix timestamp
func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
