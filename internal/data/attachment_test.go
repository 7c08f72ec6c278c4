package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentRepo_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	r := NewAttachmentRepo(dir)

	path, err := r.Save(context.Background(), "voice.mp3", strings.NewReader("audio"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "voice.mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestAttachmentRepo_SaveStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	r := NewAttachmentRepo(dir)

	path, err := r.Save(context.Background(), "../../etc/voice.mp3", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "voice.mp3"), path)
}

func TestAttachmentRepo_SaveGeneratesName(t *testing.T) {
	dir := t.TempDir()
	r := NewAttachmentRepo(dir)

	path, err := r.Save(context.Background(), "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Len(t, filepath.Base(path), 36)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stream reset") }

func TestAttachmentRepo_SaveReadError(t *testing.T) {
	dir := t.TempDir()
	r := NewAttachmentRepo(dir)

	_, err := r.Save(context.Background(), "a.ogg", failingReader{})
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "a.ogg"))
	assert.True(t, os.IsNotExist(statErr), "partial file is removed")
}

func TestAttachmentRepo_SaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAttachmentRepo(t.TempDir()).Save(ctx, "a.ogg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
