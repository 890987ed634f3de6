// Package blob stores uploaded avatars and message attachments. The stored
// reference is opaque to callers; it is served back through Open.
package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrUnsupported = errors.New("unsupported file type")
	ErrInvalidRef  = errors.New("invalid blob reference")
	allowedExts    = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".pdf": true, ".zip": true, ".txt": true, ".docx": true}
	imageExts      = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
)

type Store interface {
	// Put stores r under a name derived from prefix and filename and returns
	// the reference used to fetch it again.
	Put(ctx context.Context, prefix, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// CheckExt validates filename's extension. Avatars accept images only.
func CheckExt(filename string, imagesOnly bool) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if imagesOnly {
		if !imageExts[ext] {
			return "", ErrUnsupported
		}
		return ext, nil
	}
	if !allowedExts[ext] {
		return "", ErrUnsupported
	}
	return ext, nil
}

// PublicURL is the API path that streams ref back to clients.
func PublicURL(ref string) string {
	return "/api/files/" + ref
}
