package repo

import (
	"context"
	"io"
)

// AttachmentRepo stores inbound attachments on disk
type AttachmentRepo interface {
	// Save writes the content under name and returns the file path
	Save(ctx context.Context, name string, content io.Reader) (string, error)
}
