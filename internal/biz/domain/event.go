package domain

import (
	"context"
	"io"
	"time"
)

// ConversationKind distinguishes direct chats from group chats
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// MessageType is the coarse content type reported by the chat platform
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeAttachment
	MessageTypeAudio
	MessageTypeContact
	MessageTypeChatHistory
	MessageTypeEmoticon
	MessageTypeImage
	MessageTypeText
	MessageTypeLocation
	MessageTypeMiniProgram
	MessageTypeGroupNote
	MessageTypeTransfer
	MessageTypeRedEnvelope
	MessageTypeRecalled
	MessageTypeURL
	MessageTypeVideo
	MessageTypePost
)

var messageTypeNames = map[MessageType]string{
	MessageTypeUnknown:     "unknown",
	MessageTypeAttachment:  "attachment",
	MessageTypeAudio:       "audio",
	MessageTypeContact:     "contact",
	MessageTypeChatHistory: "chat_history",
	MessageTypeEmoticon:    "emoticon",
	MessageTypeImage:       "image",
	MessageTypeText:        "text",
	MessageTypeLocation:    "location",
	MessageTypeMiniProgram: "mini_program",
	MessageTypeGroupNote:   "group_note",
	MessageTypeTransfer:    "transfer",
	MessageTypeRedEnvelope: "red_envelope",
	MessageTypeRecalled:    "recalled",
	MessageTypeURL:         "url",
	MessageTypeVideo:       "video",
	MessageTypePost:        "post",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// AudioRef points at the audio payload of a voice message.
// Open is supplied by the transport and fetches the bytes lazily.
type AudioRef struct {
	Name string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// InboundEvent is a normalized message received from a chat transport.
// Transports construct it once; nothing downstream mutates it.
type InboundEvent struct {
	ID              string
	SenderName      string
	Kind            ConversationKind
	ConversationKey string // contact name for direct chats, room topic for groups
	RawText         string
	Type            MessageType
	IsFromSelf      bool
	Timestamp       time.Time
	Audio           *AudioRef
}

// IsPrivate reports whether the event belongs to a direct chat
func (e *InboundEvent) IsPrivate() bool {
	return e.Kind != ConversationGroup
}

// IsBefore checks if the event happened before the specified time
func (e *InboundEvent) IsBefore(t time.Time) bool {
	return e.Timestamp.Before(t)
}
