package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStore keeps images on the local filesystem and serves them through the
// API's static media route. Development and test backend.
type FSStore struct {
	dir     string
	baseURL string
}

// NewFSStore creates a store writing under dir, with URLs rooted at baseURL.
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media dir: %w", err)
	}
	return &FSStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory images are written to.
func (s *FSStore) Dir() string { return s.dir }

// Put writes the image to disk and returns its URL.
func (s *FSStore) Put(ctx context.Context, data []byte) (string, error) {
	name := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// Delete removes the image file referenced by the URL.
func (s *FSStore) Delete(ctx context.Context, imageURL string) error {
	idx := strings.LastIndex(imageURL, "/")
	if idx < 0 || idx == len(imageURL)-1 {
		return fmt.Errorf("cannot derive file name from %q", imageURL)
	}
	name := imageURL[idx+1:]
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("removing image: %w", err)
	}
	return nil
}
