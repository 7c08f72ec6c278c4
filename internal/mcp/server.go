package mcp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/logger"
)

// defaultTurnLimit caps the turns returned by get_conversation
const defaultTurnLimit = 20

// Server exposes conversation state over MCP
type Server struct {
	server        *mcp.Server
	conversations repo.ConversationRepo
	logger        *slog.Logger
}

// NewServer creates a new MCP server for conversation administration
func NewServer(conversations repo.ConversationRepo, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "chat-relay",
			Version: version,
		}, nil),
		conversations: conversations,
		logger:        logger.Component("mcp"),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCP returns the underlying SDK server
func (s *Server) MCP() *mcp.Server {
	return s.server
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_conversations",
		Description: "List all conversations the relay knows, most recently active first.",
	}, s.listConversations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_conversation",
		Description: "Get the custom prompt and recent history of a conversation.",
	}, s.getConversation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "set_prompt",
		Description: "Set the custom system prompt of a conversation, same as '/cmd prompt'. An empty prompt restores the default.",
	}, s.setPrompt)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_history",
		Description: "Delete the history of a conversation, same as '/cmd clear'. The custom prompt is kept.",
	}, s.clearHistory)
}

// ConversationSummary describes a conversation without its history
type ConversationSummary struct {
	Key            string `json:"key"`
	PromptOverride string `json:"prompt_override,omitempty"`
	UpdatedAt      string `json:"updated_at"`
}

// ListConversationsInput is empty - no input needed
type ListConversationsInput struct{}

// ListConversationsOutput contains the conversations
type ListConversationsOutput struct {
	Conversations []ConversationSummary `json:"conversations"`
	Error         string                `json:"error,omitempty"`
}

func (s *Server) listConversations(ctx context.Context, req *mcp.CallToolRequest, input ListConversationsInput) (*mcp.CallToolResult, ListConversationsOutput, error) {
	convs, err := s.conversations.List(ctx)
	if err != nil {
		s.logger.Error("list conversations", slog.Any("error", err))
		return nil, ListConversationsOutput{Error: err.Error()}, nil
	}

	out := ListConversationsOutput{Conversations: make([]ConversationSummary, 0, len(convs))}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, ConversationSummary{
			Key:            c.Key,
			PromptOverride: c.PromptOverride,
			UpdatedAt:      formatTime(c.UpdatedAt),
		})
	}
	return nil, out, nil
}

// GetConversationInput is the input for get_conversation tool
type GetConversationInput struct {
	Key   string `json:"key" jsonschema:"The conversation key: contact name for direct chats, room topic for groups"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of recent turns to return (default 20)"`
}

// TurnView is one history entry
type TurnView struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// GetConversationOutput contains the conversation state
type GetConversationOutput struct {
	Key            string     `json:"key"`
	PromptOverride string     `json:"prompt_override,omitempty"`
	Turns          []TurnView `json:"turns"`
	TotalTurns     int        `json:"total_turns"`
	Error          string     `json:"error,omitempty"`
}

func (s *Server) getConversation(ctx context.Context, req *mcp.CallToolRequest, input GetConversationInput) (*mcp.CallToolResult, GetConversationOutput, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, GetConversationOutput{Error: "key is required"}, nil
	}

	conv, err := s.conversations.Get(ctx, key)
	if err != nil {
		s.logger.Error("get conversation", slog.String("key", key), slog.Any("error", err))
		return nil, GetConversationOutput{Key: key, Error: err.Error()}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultTurnLimit
	}
	turns := conv.LastTurns(limit)

	out := GetConversationOutput{
		Key:            conv.Key,
		PromptOverride: conv.PromptOverride,
		Turns:          make([]TurnView, 0, len(turns)),
		TotalTurns:     len(conv.Turns),
	}
	for _, t := range turns {
		out.Turns = append(out.Turns, TurnView{
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: formatTime(t.CreatedAt),
		})
	}
	return nil, out, nil
}

// SetPromptInput is the input for set_prompt tool
type SetPromptInput struct {
	Key    string `json:"key" jsonschema:"The conversation key"`
	Prompt string `json:"prompt" jsonschema:"The system prompt to use for this conversation"`
}

// ResultOutput reports whether a change was applied
type ResultOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) setPrompt(ctx context.Context, req *mcp.CallToolRequest, input SetPromptInput) (*mcp.CallToolResult, ResultOutput, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, ResultOutput{Error: "key is required"}, nil
	}
	if err := s.conversations.SetPromptOverride(ctx, key, input.Prompt); err != nil {
		return nil, ResultOutput{Error: err.Error()}, nil
	}
	s.logger.Info("prompt set", slog.String("key", key))
	return nil, ResultOutput{Success: true}, nil
}

// ClearHistoryInput is the input for clear_history tool
type ClearHistoryInput struct {
	Key string `json:"key" jsonschema:"The conversation key"`
}

func (s *Server) clearHistory(ctx context.Context, req *mcp.CallToolRequest, input ClearHistoryInput) (*mcp.CallToolResult, ResultOutput, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, ResultOutput{Error: "key is required"}, nil
	}
	if err := s.conversations.ClearHistory(ctx, key); err != nil {
		return nil, ResultOutput{Error: err.Error()}, nil
	}
	s.logger.Info("history cleared", slog.String("key", key))
	return nil, ResultOutput{Success: true}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
