package storage

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotImage is returned when the uploaded bytes are not an image.
var ErrNotImage = fmt.Errorf("file is not an image")

// ImageStore stores uploaded images and resolves their public URLs.
type ImageStore interface {
	// Put validates the payload is an image, stores it under a randomized
	// key and returns the publicly resolvable URL.
	Put(filename string, data []byte) (string, error)
}

// DiskStore is an ImageStore backed by a local directory served as static
// files.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put implements ImageStore. The content type is sniffed from the payload
// rather than trusted from the request.
func (s *DiskStore) Put(filename string, data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		// Fall back to the sniffed type, e.g. "image/png" -> ".png"
		ext = "." + strings.TrimPrefix(contentType, "image/")
	}

	key := uuid.NewString() + ext
	path := filepath.Join(s.dir, key)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return s.baseURL + "/" + key, nil
}
