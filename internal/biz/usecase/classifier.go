package usecase

import (
	"log/slog"
	"strings"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/logger"
)

// ClassificationTable lists platform-specific literals that mark a message as noise
type ClassificationTable struct {
	SystemSenders []string // official/system accounts whose messages are ignored
	Placeholders  []string // notices the platform shows instead of unsupported content
}

// Classifier decides whether an inbound event is noise
type Classifier struct {
	table      ClassificationTable
	blockWords []string
	logger     *slog.Logger
}

// NewClassifier creates a new classifier
func NewClassifier(table ClassificationTable, blockWords []string) *Classifier {
	return &Classifier{
		table:      table,
		blockWords: blockWords,
		logger:     logger.Component("classifier"),
	}
}

// IsNonsense reports whether the event must be dropped before any trigger or command logic.
// Checks run cheapest first and stop at the first hit.
func (c *Classifier) IsNonsense(event *domain.InboundEvent) bool {
	if event.IsFromSelf {
		return true
	}
	if event.Type != domain.MessageTypeText && event.Type != domain.MessageTypeAudio {
		return true
	}
	for _, sender := range c.table.SystemSenders {
		if event.SenderName == sender {
			return true
		}
	}
	if _, ok := containsAny(event.RawText, c.table.Placeholders); ok {
		return true
	}
	if word, ok := c.ContainsBlockWord(event.RawText); ok {
		c.logger.Debug("blocked by word", slog.String("word", word), slog.String("sender", event.SenderName))
		return true
	}
	return false
}

// ContainsBlockWord reports the first configured block word found in text
func (c *Classifier) ContainsBlockWord(text string) (string, bool) {
	return containsAny(text, c.blockWords)
}

// containsAny returns the first of words that is a substring of text.
// Empty words never match.
func containsAny(text string, words []string) (string, bool) {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}
