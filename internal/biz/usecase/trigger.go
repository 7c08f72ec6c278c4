package usecase

import (
	"log/slog"
	"regexp"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/logger"
)

// mentionSpace matches the single whitespace after an @-mention.
// Platforms insert non-ASCII spaces (U+2005 on WeChat), which RE2's \s does not cover.
const mentionSpace = `[\s\p{Z}\x{FEFF}]`

// TriggerConfig contains trigger and filter configuration
type TriggerConfig struct {
	PrivateTriggerKeyword string
	SharedTriggerPattern  *regexp.Regexp // CHAT_TRIGGER_RULE, optional
	BlockWords            []string
	ChatGPTBlockWords     []string
	GroupRepliesDisabled  bool
}

// PrivatePattern returns the pattern a private message must match.
// The shared pattern takes precedence over the keyword; nil means every message triggers.
func (c TriggerConfig) PrivatePattern() *regexp.Regexp {
	if c.SharedTriggerPattern != nil {
		return c.SharedTriggerPattern
	}
	if c.PrivateTriggerKeyword != "" {
		return regexp.MustCompile(regexp.QuoteMeta(c.PrivateTriggerKeyword))
	}
	return nil
}

// TriggerEvaluator decides whether a message is a prompt for the model
type TriggerEvaluator struct {
	cfg            TriggerConfig
	identity       *domain.Identity
	privatePattern *regexp.Regexp
	logger         *slog.Logger
}

// NewTriggerEvaluator creates a new trigger evaluator.
// identity may still be unset; group mentions are matched against it at evaluation time.
func NewTriggerEvaluator(cfg TriggerConfig, identity *domain.Identity) *TriggerEvaluator {
	return &TriggerEvaluator{
		cfg:            cfg,
		identity:       identity,
		privatePattern: cfg.PrivatePattern(),
		logger:         logger.Component("trigger"),
	}
}

// Config returns the trigger configuration
func (e *TriggerEvaluator) Config() TriggerConfig {
	return e.cfg
}

// GroupMentionPattern builds `^@<botName><space>` from the current identity.
// Returns false while the identity is unset.
func (e *TriggerEvaluator) GroupMentionPattern() (*regexp.Regexp, bool) {
	name, ok := e.identity.Name()
	if !ok {
		return nil, false
	}
	return regexp.MustCompile(`^@` + regexp.QuoteMeta(name) + mentionSpace), true
}

// ShouldTrigger determines whether rawText should be sent to the model
func (e *TriggerEvaluator) ShouldTrigger(rawText string, private bool) bool {
	triggered := false
	if private {
		triggered = e.privatePattern == nil || e.privatePattern.MatchString(rawText)
	} else if mention, ok := e.GroupMentionPattern(); ok {
		triggered = mention.MatchString(rawText)
		if triggered && e.cfg.SharedTriggerPattern != nil {
			triggered = e.cfg.SharedTriggerPattern.MatchString(replaceFirst(mention, rawText))
		}
	}

	if triggered {
		e.logger.Debug("triggered", slog.Bool("private", private), slog.String("text", rawText))
	}
	return triggered
}

// replaceFirst removes the first match of re from s
func replaceFirst(re *regexp.Regexp, s string) string {
	if re == nil {
		return s
	}
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}
