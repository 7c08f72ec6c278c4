package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/devricklin/chat-relay/internal/infra"
)

// speaker sends to one Feishu chat
type speaker struct {
	client *Client
	chatID string
	key    string
}

func (s *speaker) Key() string { return s.key }

// Say sends a text message to the chat
func (s *speaker) Say(ctx context.Context, text string) error {
	content, _ := json.Marshal(map[string]string{"text": text})
	return s.client.send(ctx, s.chatID, larkim.MsgTypeText, string(content))
}

// SayImage downloads the image at url, uploads it to Feishu and sends it
func (s *speaker) SayImage(ctx context.Context, url string) error {
	body, err := infra.Fetch(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	uploadReq := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType(larkim.ImageTypeMessage).
			Image(body).
			Build()).
		Build()
	uploadResp, err := s.client.larkCli.Im.V1.Image.Create(ctx, uploadReq)
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	if !uploadResp.Success() {
		return fmt.Errorf("upload image error: %s", uploadResp.Msg)
	}

	key, err := imageKey(uploadResp)
	if err != nil {
		return err
	}
	content, _ := json.Marshal(map[string]string{"image_key": key})
	return s.client.send(ctx, s.chatID, larkim.MsgTypeImage, string(content))
}

// imageKey extracts the key of an uploaded image
func imageKey(resp *larkim.CreateImageResp) (string, error) {
	if resp.Data == nil || resp.Data.ImageKey == nil || *resp.Data.ImageKey == "" {
		return "", errors.New("upload image: response has no image_key")
	}
	return *resp.Data.ImageKey, nil
}

func (c *Client) send(ctx context.Context, chatID, msgType, content string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s (code: %d)", resp.Msg, resp.Code)
	}
	return nil
}

// downloadResource fetches a file attached to a message
func (c *Client) downloadResource(ctx context.Context, messageID, fileKey string) (io.ReadCloser, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(fileKey).
		Type("file").
		Build()

	resp, err := c.larkCli.Im.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get resource error: %s", resp.Msg)
	}
	return io.NopCloser(resp.File), nil
}
