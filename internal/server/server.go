package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/biz/usecase"
	"github.com/devricklin/chat-relay/internal/logger"
	"github.com/devricklin/chat-relay/internal/service"
)

const (
	pingCommand = "/ping"
	pongReply   = "pong"

	// dedupWindow is how long a message ID is remembered
	dedupWindow = 5 * time.Minute
)

// Transport is a chat platform connection
type Transport interface {
	Name() string
	OnLogin(fn func(name string))
	OnMessage(handler repo.EventHandler)
	// Start connects and blocks until ctx is done or the connection fails
	Start(ctx context.Context) error
	Stop()
}

// Handler processes one inbound event
type Handler interface {
	OnMessage(ctx context.Context, event *domain.InboundEvent, speaker repo.Speaker) error
}

// Options configures the server
type Options struct {
	Trigger        usecase.TriggerConfig
	OrderedReplies bool
	MaxConcurrent  int
}

// Server connects a transport to the dispatcher
type Server struct {
	transport Transport
	handler   Handler
	identity  *domain.Identity
	queue     *service.KeyedQueue
	opts      Options
	startedAt time.Time
	now       func() time.Time
	logger    *slog.Logger

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewServer creates a new server
func NewServer(transport Transport, handler Handler, identity *domain.Identity, opts Options) *Server {
	return &Server{
		transport: transport,
		handler:   handler,
		identity:  identity,
		queue:     service.NewKeyedQueue(opts.MaxConcurrent),
		opts:      opts,
		now:       time.Now,
		seenMsgs:  make(map[string]time.Time),
		logger:    logger.Component("server"),
	}
}

// Start runs the transport and blocks until it returns
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = s.now()
	s.transport.OnLogin(s.onLogin)
	s.transport.OnMessage(s.handleMessage)

	s.logger.Info("starting transport", slog.String("transport", s.transport.Name()))
	if err := s.transport.Start(ctx); err != nil {
		return fmt.Errorf("%s transport: %w", s.transport.Name(), err)
	}
	return nil
}

// Stop stops the transport and waits for in-flight events
func (s *Server) Stop() {
	s.transport.Stop()
	s.queue.Wait()
}

func (s *Server) onLogin(name string) {
	if err := s.identity.Set(name); err != nil {
		if errors.Is(err, domain.ErrIdentityAlreadySet) {
			s.logger.Debug("identity already set", slog.String("name", name))
			return
		}
		s.logger.Error("failed to set identity", slog.Any("error", err))
		return
	}

	cfg := s.opts.Trigger
	rule := ""
	if cfg.SharedTriggerPattern != nil {
		rule = cfg.SharedTriggerPattern.String()
	}
	s.logger.Info("logged in",
		slog.String("name", name),
		slog.String("private_trigger_keyword", cfg.PrivateTriggerKeyword),
		slog.String("trigger_rule", rule),
		slog.Bool("group_replies_disabled", cfg.GroupRepliesDisabled),
		slog.Int("block_words", len(cfg.BlockWords)),
		slog.Any("block_word_list", cfg.BlockWords),
		slog.Int("chatgpt_block_words", len(cfg.ChatGPTBlockWords)),
		slog.Any("chatgpt_block_word_list", cfg.ChatGPTBlockWords),
	)
}

// handleMessage filters the event and hands it to the dispatcher without blocking
func (s *Server) handleMessage(ctx context.Context, event *domain.InboundEvent, speaker repo.Speaker) {
	// Events without a timestamp are treated as fresh
	if !event.Timestamp.IsZero() && event.IsBefore(s.startedAt) {
		s.logger.Debug("stale message ignored", slog.String("id", event.ID), slog.Time("timestamp", event.Timestamp))
		return
	}

	if event.ID != "" && s.markMessageSeen(event.ID) {
		s.logger.Debug("duplicate message ignored", slog.String("id", event.ID))
		return
	}

	s.queue.Enqueue(ctx, s.queueKey(event, speaker), func(ctx context.Context) {
		s.process(ctx, event, speaker)
	})
}

// queueKey serialises a conversation when replies are ordered
func (s *Server) queueKey(event *domain.InboundEvent, speaker repo.Speaker) string {
	if s.opts.OrderedReplies {
		return speaker.Key()
	}
	if event.ID != "" {
		return "event:" + event.ID
	}
	return "event:" + uuid.NewString()
}

func (s *Server) process(ctx context.Context, event *domain.InboundEvent, speaker repo.Speaker) {
	ctx = logger.WithContext(ctx, logger.L.With(
		slog.String("event_id", event.ID),
		slog.String("conversation", speaker.Key()),
	))

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling message",
				slog.String("id", event.ID),
				slog.Any("panic", r),
			)
		}
	}()

	if strings.HasPrefix(event.RawText, pingCommand) {
		if err := speaker.Say(ctx, pongReply); err != nil {
			s.logger.Error("failed to reply to ping", slog.Any("error", err))
		}
		return
	}

	if err := s.handler.OnMessage(ctx, event, speaker); err != nil {
		s.logger.Error("handle message error",
			slog.String("id", event.ID),
			slog.String("conversation", speaker.Key()),
			slog.String("text", truncate(event.RawText, 50)),
			slog.Any("error", err),
		)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// markMessageSeen records a message ID and reports whether it was already seen.
// Expired records are cleaned up on every call.
func (s *Server) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	now := s.now()

	cutoff := now.Add(-dedupWindow)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}

	if _, exists := s.seenMsgs[msgID]; exists {
		return true
	}
	s.seenMsgs[msgID] = now
	return false
}
