package usecase

import "strings"

// HistorySeparator separates quoted chat history from the newest message
const HistorySeparator = "- - - - - - - - - - - - - - -"

// Cleaner extracts the effective prompt from a triggered message
type Cleaner struct {
	trigger *TriggerEvaluator
}

// NewCleaner creates a new cleaner sharing the evaluator's patterns
func NewCleaner(trigger *TriggerEvaluator) *Cleaner {
	return &Cleaner{trigger: trigger}
}

// Clean drops quoted history and trigger markers. The result may be empty.
func (c *Cleaner) Clean(rawText string, private bool) string {
	text := rawText
	if i := strings.LastIndex(rawText, HistorySeparator); i >= 0 {
		text = rawText[i+len(HistorySeparator):]
	}

	if private {
		return replaceFirst(c.trigger.privatePattern, text)
	}

	if mention, ok := c.trigger.GroupMentionPattern(); ok {
		text = replaceFirst(mention, text)
	}
	return replaceFirst(c.trigger.cfg.SharedTriggerPattern, text)
}
