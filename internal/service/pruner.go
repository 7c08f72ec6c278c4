package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/logger"
)

// Pruner periodically deletes conversation turns older than the retention
type Pruner struct {
	conversations repo.ConversationRepo
	retention     time.Duration
	schedule      string
	cron          *cron.Cron
	now           func() time.Time
	logger        *slog.Logger
}

// NewPruner creates a new pruner. A zero retention disables pruning.
func NewPruner(conversations repo.ConversationRepo, retention time.Duration, schedule string) *Pruner {
	return &Pruner{
		conversations: conversations,
		retention:     retention,
		schedule:      schedule,
		now:           time.Now,
		logger:        logger.Component("pruner"),
	}
}

// Start registers the prune job and starts the scheduler
func (p *Pruner) Start(ctx context.Context) error {
	if p.retention <= 0 {
		p.logger.Info("history pruning disabled")
		return nil
	}

	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.schedule, func() { p.Prune(ctx) }); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.schedule, err)
	}
	p.cron.Start()
	p.logger.Info("history pruning scheduled",
		slog.String("schedule", p.schedule),
		slog.Duration("retention", p.retention),
	)
	return nil
}

// Stop stops the scheduler and waits for a running prune
func (p *Pruner) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}

// Prune deletes turns older than the retention once
func (p *Pruner) Prune(ctx context.Context) int64 {
	before := p.now().Add(-p.retention)
	n, err := p.conversations.PruneBefore(ctx, before)
	if err != nil {
		p.logger.Error("failed to prune history", slog.Any("error", err))
		return 0
	}
	if n > 0 {
		p.logger.Info("pruned history", slog.Int64("turns", n))
	}
	return n
}
