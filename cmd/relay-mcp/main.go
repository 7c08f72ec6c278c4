package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/devricklin/chat-relay/internal/conf"
	"github.com/devricklin/chat-relay/internal/data"
	"github.com/devricklin/chat-relay/internal/logger"
	"github.com/devricklin/chat-relay/internal/mcp"
)

var version = "v0.0.0-dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("load .env", slog.Any("error", err))
	}

	cfg, err := conf.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	// stdout carries the MCP protocol
	logger.InitWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	conversations, err := data.NewConversationRepo(cfg.Storage.DBPath)
	if err != nil {
		logger.L.Error("open conversation store", slog.Any("error", err))
		os.Exit(1)
	}
	defer conversations.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcp.NewServer(conversations, version).Run(ctx); err != nil && ctx.Err() == nil {
		logger.L.Error("mcp server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
