package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/usecase"
	"github.com/devricklin/chat-relay/internal/conf"
	"github.com/devricklin/chat-relay/internal/data"
	"github.com/devricklin/chat-relay/internal/infra/discord"
	"github.com/devricklin/chat-relay/internal/infra/feishu"
	"github.com/devricklin/chat-relay/internal/infra/telegram"
	"github.com/devricklin/chat-relay/internal/logger"
	"github.com/devricklin/chat-relay/internal/server"
	"github.com/devricklin/chat-relay/internal/service"
)

func main() {
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Relay chat messages to an OpenAI-compatible model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCheckCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat platform and start relaying",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			return run(cmd.Context(), cfg)
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the resolved trigger settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			trigger, err := cfg.ToTriggerConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "transport:               %s\n", cfg.Transport)
			fmt.Fprintf(out, "model:                   %s\n", cfg.OpenAI.Model)
			fmt.Fprintf(out, "private trigger keyword: %q\n", trigger.PrivateTriggerKeyword)
			if trigger.SharedTriggerPattern != nil {
				fmt.Fprintf(out, "trigger rule:            %s\n", trigger.SharedTriggerPattern)
			}
			fmt.Fprintf(out, "group replies disabled:  %t\n", trigger.GroupRepliesDisabled)
			fmt.Fprintf(out, "block words:             %d %v\n", len(trigger.BlockWords), trigger.BlockWords)
			fmt.Fprintf(out, "chatgpt block words:     %d %v\n", len(trigger.ChatGPTBlockWords), trigger.ChatGPTBlockWords)
			fmt.Fprintf(out, "ordered replies:         %t (max concurrent %d)\n", cfg.Dispatch.OrderedReplies, cfg.Dispatch.MaxConcurrent)
			fmt.Fprintf(out, "database:                %s\n", cfg.Storage.DBPath)
			return nil
		},
	}
}

func loadConfig() (*conf.Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := conf.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *conf.Config) error {
	log := logger.Component("relay")

	if source := cfg.Classification.Source; source != "" {
		log.Info("classification table loaded", slog.String("path", source))
	} else {
		log.Debug("no classification.yaml found, using defaults")
	}

	triggerCfg, err := cfg.ToTriggerConfig()
	if err != nil {
		return err
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg)
	if err != nil {
		return fmt.Errorf("create repositories: %w", err)
	}
	defer repos.Close()
	log.Info("conversation store opened", slog.String("path", cfg.Storage.DBPath))

	// Initialize usecase layer
	identity := domain.NewIdentity()
	var limiter *rate.Limiter
	if cfg.Dispatch.OutboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Dispatch.OutboundRate), 1)
	}
	trigger := usecase.NewTriggerEvaluator(triggerCfg, identity)
	composer := usecase.NewComposer(triggerCfg.ChatGPTBlockWords, limiter)

	// Initialize service layer
	dispatcher := service.NewDispatcher(
		usecase.NewClassifier(cfg.ToClassificationTable(), triggerCfg.BlockWords),
		trigger,
		usecase.NewCommandRegistry(repos.Conversation, composer, cfg.Dispatch.UnknownCommandFeedback),
		composer,
		usecase.NewChatUsecase(repos.Model, repos.Conversation),
		repos.Attachment,
		usecase.DefaultPolicies(),
	)
	pruner := service.NewPruner(repos.Conversation, cfg.History.Retention, cfg.History.PruneCron)

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}
	srv := server.NewServer(transport, dispatcher, identity, server.Options{
		Trigger:        triggerCfg,
		OrderedReplies: cfg.Dispatch.OrderedReplies,
		MaxConcurrent:  cfg.Dispatch.MaxConcurrent,
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pruner.Start(ctx); err != nil {
		return err
	}
	defer pruner.Stop()

	log.Info("starting chat relay", slog.String("transport", cfg.Transport))
	err = srv.Start(ctx)
	srv.Stop()
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shut down")
	return nil
}

func newTransport(cfg *conf.Config) (server.Transport, error) {
	switch cfg.Transport {
	case conf.TransportFeishu:
		return feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret), nil
	case conf.TransportTelegram:
		return telegram.NewClient(cfg.Telegram.BotToken), nil
	case conf.TransportDiscord:
		return discord.NewClient(cfg.Discord.Token), nil
	default:
		return nil, &conf.ConfigError{Field: "TRANSPORT", Message: fmt.Sprintf("unknown transport %q", cfg.Transport)}
	}
}
