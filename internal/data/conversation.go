package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devricklin/chat-relay/internal/biz/domain"
	"github.com/devricklin/chat-relay/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// conversationRepo implements the Conversation repository on sqlite
type conversationRepo struct {
	db *sql.DB
}

// NewConversationRepo creates a new Conversation repository
func NewConversationRepo(dbPath string) (repo.ConversationRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			conversation_key TEXT PRIMARY KEY,
			prompt_override TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_key TEXT NOT NULL REFERENCES conversations(conversation_key) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_turns_key_created ON turns(conversation_key, created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &conversationRepo{db: db}, nil
}

// Get gets a conversation with its turns, oldest first
func (r *conversationRepo) Get(ctx context.Context, key string) (*domain.Conversation, error) {
	conv := &domain.Conversation{Key: key}

	var updatedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT prompt_override, updated_at FROM conversations WHERE conversation_key = ?
	`, key).Scan(&conv.PromptOverride, &updatedAt)
	if err == sql.ErrNoRows {
		return conv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	conv.UpdatedAt = time.UnixMilli(updatedAt)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, role, content, created_at FROM turns
		WHERE conversation_key = ?
		ORDER BY created_at ASC, id ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn domain.Turn
		var role string
		var createdAt int64
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = domain.Role(role)
		turn.CreatedAt = time.UnixMilli(createdAt)
		conv.Turns = append(conv.Turns, turn)
	}
	return conv, rows.Err()
}

// List lists conversations ordered by last update, newest first
func (r *conversationRepo) List(ctx context.Context) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_key, prompt_override, updated_at FROM conversations
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var result []*domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var updatedAt int64
		if err := rows.Scan(&conv.Key, &conv.PromptOverride, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv.UpdatedAt = time.UnixMilli(updatedAt)
		result = append(result, &conv)
	}
	return result, rows.Err()
}

// SetPromptOverride sets the custom prompt, creating the conversation if needed
func (r *conversationRepo) SetPromptOverride(ctx context.Context, key, prompt string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_key, prompt_override, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(conversation_key) DO UPDATE SET prompt_override = excluded.prompt_override, updated_at = excluded.updated_at
	`, key, prompt, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set prompt: %w", err)
	}
	return nil
}

// ClearHistory deletes all turns; the prompt override is kept
func (r *conversationRepo) ClearHistory(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM turns WHERE conversation_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// AppendUserTurn appends a user turn
func (r *conversationRepo) AppendUserTurn(ctx context.Context, key, content string) error {
	return r.appendTurn(ctx, key, domain.RoleUser, content)
}

// AppendAssistantTurn appends an assistant turn
func (r *conversationRepo) AppendAssistantTurn(ctx context.Context, key, content string) error {
	return r.appendTurn(ctx, key, domain.RoleAssistant, content)
}

func (r *conversationRepo) appendTurn(ctx context.Context, key string, role domain.Role, content string) error {
	now := time.Now().UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (conversation_key, updated_at) VALUES (?, ?)
		ON CONFLICT(conversation_key) DO UPDATE SET updated_at = excluded.updated_at
	`, key, now)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (conversation_key, role, content, created_at) VALUES (?, ?, ?, ?)
	`, key, string(role), content, now)
	if err != nil {
		return fmt.Errorf("failed to append %s turn: %w", role, err)
	}

	return tx.Commit()
}

// PruneBefore deletes turns created before the specified time
func (r *conversationRepo) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune turns: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (r *conversationRepo) Close() error {
	return r.db.Close()
}
