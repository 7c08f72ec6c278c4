package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/devricklin/chat-relay/internal/biz/repo"
	"github.com/devricklin/chat-relay/internal/logger"
)

// CommandPrefix starts a command message; the trailing space is part of it
const CommandPrefix = "/cmd "

// HelpText is the usage message sent by /cmd help
const HelpText = "========\n" +
	"/cmd help\n" +
	"# Show this help\n" +
	"/cmd prompt <PROMPT>\n" +
	"# Set the prompt of the current conversation\n" +
	"/img <PROMPT>\n" +
	"# Generate an image from the prompt\n" +
	"/cmd clear\n" +
	"# Clear the conversation history\n" +
	"========"

var commandSplit = regexp.MustCompile(`\s+`)

// Command is a slash-command handler
type Command struct {
	Name        string
	Description string
	Exec        func(ctx context.Context, speaker repo.Speaker, args string) error
}

// LookupResult is the outcome of a command lookup: CommandFound or CommandNotFound
type LookupResult interface {
	lookupResult()
}

// CommandFound carries the matched command
type CommandFound struct {
	Command Command
}

// CommandNotFound carries the unmatched name
type CommandNotFound struct {
	Name string
}

func (CommandFound) lookupResult()    {}
func (CommandNotFound) lookupResult() {}

// CommandRegistry holds the fixed set of commands
type CommandRegistry struct {
	commands        []Command
	conversations   repo.ConversationRepo
	composer        *Composer
	unknownFeedback bool
	logger          *slog.Logger
}

// NewCommandRegistry creates the registry of help, prompt and clear.
// With unknownFeedback set, unmatched names get a reply instead of silence.
func NewCommandRegistry(conversations repo.ConversationRepo, composer *Composer, unknownFeedback bool) *CommandRegistry {
	r := &CommandRegistry{
		conversations:   conversations,
		composer:        composer,
		unknownFeedback: unknownFeedback,
		logger:          logger.Component("command"),
	}
	r.commands = []Command{
		{
			Name:        "help",
			Description: "Show help",
			Exec: func(ctx context.Context, speaker repo.Speaker, _ string) error {
				return r.composer.TrySay(ctx, speaker, HelpText)
			},
		},
		{
			Name:        "prompt",
			Description: "Set the prompt of the current conversation",
			Exec: func(ctx context.Context, speaker repo.Speaker, args string) error {
				return r.conversations.SetPromptOverride(ctx, speaker.Key(), args)
			},
		},
		{
			Name:        "clear",
			Description: "Clear the conversation history",
			Exec: func(ctx context.Context, speaker repo.Speaker, _ string) error {
				return r.conversations.ClearHistory(ctx, speaker.Key())
			},
		},
	}
	return r
}

// Commands returns the registered commands
func (r *CommandRegistry) Commands() []Command {
	return r.commands
}

// Lookup finds a command by exact name
func (r *CommandRegistry) Lookup(name string) LookupResult {
	for _, cmd := range r.commands {
		if cmd.Name == name {
			return CommandFound{Command: cmd}
		}
	}
	return CommandNotFound{Name: name}
}

// Run parses "name args..." and executes the command against the speaker
func (r *CommandRegistry) Run(ctx context.Context, speaker repo.Speaker, line string) error {
	fields := commandSplit.Split(line, -1)
	name, args := fields[0], strings.Join(fields[1:], " ")

	switch res := r.Lookup(name).(type) {
	case CommandFound:
		if err := res.Command.Exec(ctx, speaker, args); err != nil {
			return fmt.Errorf("command %s: %w", name, err)
		}
		return nil
	case CommandNotFound:
		r.logger.Debug("unknown command", slog.String("name", res.Name), slog.String("conversation", speaker.Key()))
		if r.unknownFeedback {
			return r.composer.TrySay(ctx, speaker, fmt.Sprintf("Unknown command %q, try /cmd help", res.Name))
		}
	}
	return nil
}
