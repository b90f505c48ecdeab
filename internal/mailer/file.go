package mailer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileTransport writes each message into an outbox directory for local preview.
type FileTransport struct {
	dir string
}

func NewFileTransport(dir string) (*FileTransport, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "outreach-outbox")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox %s: %w", abs, err)
	}
	return &FileTransport{dir: abs}, nil
}

func (t *FileTransport) Deliver(ctx context.Context, env Envelope) (Delivery, error) {
	name := strings.NewReplacer("@", "_at_", "/", "_").Replace(env.MessageID) + ".eml"
	path := filepath.Join(t.dir, name)
	if err := os.WriteFile(path, env.Raw, 0o644); err != nil {
		return Delivery{}, fmt.Errorf("write outbox file: %w", err)
	}
	return Delivery{PreviewURL: "file://" + filepath.ToSlash(path)}, nil
}

func (t *FileTransport) Close() error { return nil }
