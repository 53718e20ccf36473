package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore is a blob store on the local filesystem. Uploads overwrite any
// existing blob at the same path; public URLs are served from BaseURL under
// /uploads/.
type DiskStore struct {
	Root    string
	BaseURL string
}

func NewDiskStore(root, baseURL string) *DiskStore {
	return &DiskStore{Root: root, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Upload writes the blob at path, creating parent directories as needed.
// Paths are relative and must not escape the root.
func (s *DiskStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("prepare upload dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		// don't leave a truncated blob behind
		_ = os.Remove(full)
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

// PublicURL returns the stable URL the blob is served from.
func (s *DiskStore) PublicURL(path string) string {
	return s.BaseURL + "/uploads/" + path
}

// Remove deletes a blob; missing blobs are not an error.
func (s *DiskStore) Remove(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) resolve(path string) (string, error) {
	if path == "" || strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	return filepath.Join(s.Root, clean), nil
}
