package conf

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/devricklin/chat-relay/internal/biz/usecase"
)

// Supported chat transports
const (
	TransportFeishu   = "feishu"
	TransportTelegram = "telegram"
	TransportDiscord  = "discord"
)

// Config represents application configuration
type Config struct {
	// Transport selects the chat platform
	Transport string `env:"TRANSPORT" envDefault:"feishu"`

	Feishu   FeishuConfig
	Telegram TelegramConfig
	Discord  DiscordConfig
	OpenAI   OpenAIConfig
	Trigger  TriggerValues
	Dispatch DispatchConfig
	Storage  StorageConfig
	History  HistoryConfig
	Log      LogConfig

	// Classification is loaded from YAML, not from the environment
	Classification *ClassificationConfig `env:"-"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `env:"FEISHU_APP_ID"`
	AppSecret string `env:"FEISHU_APP_SECRET"`
}

// TelegramConfig contains Telegram configuration
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
}

// DiscordConfig contains Discord configuration
type DiscordConfig struct {
	Token string `env:"DISCORD_TOKEN"`
}

// OpenAIConfig contains language-model backend configuration
type OpenAIConfig struct {
	APIKey          string        `env:"OPENAI_API_KEY"`
	BaseURL         string        `env:"OPENAI_BASE_URL"`
	Model           string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	ImageSize       string        `env:"OPENAI_IMAGE_SIZE" envDefault:"256x256"`
	Timeout         time.Duration `env:"OPENAI_TIMEOUT" envDefault:"60s"`
	SystemPrompt    string        `env:"SYSTEM_PROMPT"`
	MaxHistoryCount int           `env:"MAX_HISTORY_COUNT" envDefault:"10"`
}

// TriggerValues contains the raw trigger settings
type TriggerValues struct {
	PrivateKeyword    string   `env:"CHAT_PRIVATE_TRIGGER_KEYWORD"`
	Rule              string   `env:"CHAT_TRIGGER_RULE"`
	BlockWords        []string `env:"BLOCK_WORDS" envSeparator:","`
	ChatGPTBlockWords []string `env:"CHATGPT_BLOCK_WORDS" envSeparator:","`
	DisableGroup      bool     `env:"DISABLE_GROUP_MESSAGE"`
}

// DispatchConfig contains dispatcher behaviour switches
type DispatchConfig struct {
	UnknownCommandFeedback bool    `env:"UNKNOWN_COMMAND_FEEDBACK"`
	OrderedReplies         bool    `env:"ORDERED_REPLIES"`
	MaxConcurrent          int     `env:"MAX_CONCURRENT" envDefault:"8"`
	OutboundRate           float64 `env:"OUTBOUND_RATE"` // slices per second, 0 = unlimited
}

// StorageConfig contains storage locations
type StorageConfig struct {
	DBPath             string `env:"DB_PATH" envDefault:"./data/relay.db"`
	AttachmentDir      string `env:"ATTACHMENT_DIR" envDefault:"./public"`
	ClassificationPath string `env:"CLASSIFICATION_TABLE_PATH"`
}

// HistoryConfig contains history pruning settings
type HistoryConfig struct {
	Retention time.Duration `env:"HISTORY_RETENTION" envDefault:"24h"` // 0 disables pruning
	PruneCron string        `env:"HISTORY_PRUNE_CRON" envDefault:"@hourly"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses configuration from environment variables and loads the classification table
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	cfg.Trigger.BlockWords = trimWords(cfg.Trigger.BlockWords)
	cfg.Trigger.ChatGPTBlockWords = trimWords(cfg.Trigger.ChatGPTBlockWords)

	table, err := LoadClassificationConfig(cfg.Storage.ClassificationPath)
	if err != nil {
		return nil, err
	}
	cfg.Classification = table

	return &cfg, nil
}

// trimWords drops surrounding spaces and empty entries
func trimWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// ToTriggerConfig converts to the trigger configuration, compiling CHAT_TRIGGER_RULE
func (c *Config) ToTriggerConfig() (usecase.TriggerConfig, error) {
	tc := usecase.TriggerConfig{
		PrivateTriggerKeyword: c.Trigger.PrivateKeyword,
		BlockWords:            c.Trigger.BlockWords,
		ChatGPTBlockWords:     c.Trigger.ChatGPTBlockWords,
		GroupRepliesDisabled:  c.Trigger.DisableGroup,
	}
	if c.Trigger.Rule != "" {
		re, err := regexp.Compile(c.Trigger.Rule)
		if err != nil {
			return tc, &ConfigError{Field: "CHAT_TRIGGER_RULE", Message: err.Error()}
		}
		tc.SharedTriggerPattern = re
	}
	return tc, nil
}

// ToClassificationTable converts to the classifier's table
func (c *Config) ToClassificationTable() usecase.ClassificationTable {
	table := c.Classification
	if table == nil {
		table = DefaultClassificationConfig()
	}
	return usecase.ClassificationTable{
		SystemSenders: table.SystemSenders,
		Placeholders:  table.Placeholders,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportFeishu:
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
		}
	case TransportTelegram:
		if c.Telegram.BotToken == "" {
			return &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Message: "required"}
		}
	case TransportDiscord:
		if c.Discord.Token == "" {
			return &ConfigError{Field: "DISCORD_TOKEN", Message: "required"}
		}
	default:
		return &ConfigError{Field: "TRANSPORT", Message: fmt.Sprintf("unsupported transport %q", c.Transport)}
	}

	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.OpenAI.MaxHistoryCount < 0 {
		return &ConfigError{Field: "MAX_HISTORY_COUNT", Message: "must not be negative"}
	}
	if c.Dispatch.MaxConcurrent < 1 {
		return &ConfigError{Field: "MAX_CONCURRENT", Message: "must be at least 1"}
	}
	if c.Dispatch.OutboundRate < 0 {
		return &ConfigError{Field: "OUTBOUND_RATE", Message: "must not be negative"}
	}
	if _, err := c.ToTriggerConfig(); err != nil {
		return err
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
