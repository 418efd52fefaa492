// Package storage handles feedback attachment uploads.
package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Uploader stores an attachment and returns the URL it will be served
// from.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalStorage writes uploads to a directory on disk and serves them
// under a base URL. Object storage can replace it behind the Uploader
// interface without touching callers.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocal creates the uploads directory if needed.
func NewLocal(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create dir %s", dir)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload writes the content under a random prefix so distinct uploads
// with the same filename never collide.
func (s *LocalStorage) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "storage: upload")
	}

	safe := sanitizeName(name)
	key := uuid.NewString() + "_" + safe

	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", eris.Wrapf(err, "storage: create %s", key)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", eris.Wrapf(err, "storage: write %s", key)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "storage: close %s", key)
	}

	return s.baseURL + "/" + url.PathEscape(key), nil
}

// sanitizeName keeps only the base filename and replaces path
// separators that survive filepath.Base on foreign platforms.
func sanitizeName(name string) string {
	safe := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if safe == "." || safe == "/" || safe == "" {
		return "attachment"
	}
	return safe
}
