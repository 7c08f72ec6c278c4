package data

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/devricklin/chat-relay/internal/biz/repo"
)

// attachmentRepo stores attachments as plain files
type attachmentRepo struct {
	dir string
}

// NewAttachmentRepo creates a new Attachment repository rooted at dir
func NewAttachmentRepo(dir string) repo.AttachmentRepo {
	return &attachmentRepo{dir: dir}
}

// Save writes content to dir/name. Empty names get a random one.
func (r *attachmentRepo) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = uuid.NewString()
	}
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close attachment: %w", err)
	}
	return path, nil
}
