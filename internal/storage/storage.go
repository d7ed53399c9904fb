// Package storage persists vehicle photos behind a small driver interface
// so the API can run against local disk in development and S3 in production.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PutInput struct {
	Filename    string
	ContentType string
	Size        int64
}

type PutResult struct {
	Key string // driver-scoped object key, stored on the image row
	URL string // public URL handed to clients
}

type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}

// newKey shards photos by upload month so a busy fleet never piles every
// file into a single directory or S3 listing prefix.
func newKey(filename string, now time.Time) string {
	return now.Format("2006/01") + "/" + uuid.NewString() + photoExt(filename)
}

// photoExt keeps only the extensions the upload endpoint accepts; anything
// else is stored extensionless rather than trusted.
func photoExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	default:
		return ""
	}
}
