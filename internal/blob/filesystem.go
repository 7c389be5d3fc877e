package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

// FileSystemStore keeps uploads in a directory tree under root and hands out
// file:// URLs holding the path relative to root:
//
//	<root>/
//	  <uuid>/
//	    <sanitized name>
type FileSystemStore struct {
	root string
}

var _ compliance.BlobStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

// Put writes exactly size bytes read from r to a new file.
func (s *FileSystemStore) Put(ctx context.Context, name string, r io.Reader, size int64) (model.EvidenceFile, error) {
	key := newKey(name)
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return model.EvidenceFile{}, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := writeFile(dest, r, size); err != nil {
		os.Remove(filepath.Dir(dest))
		return model.EvidenceFile{}, err
	}
	return model.EvidenceFile{URL: "file://" + key, Name: name}, nil
}

// Get writes the file stored at url to w.
func (s *FileSystemStore) Get(ctx context.Context, url string, w io.Writer) error {
	key, err := splitURL(url, "file")
	if err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Delete removes the file stored at url and its key directory.
func (s *FileSystemStore) Delete(ctx context.Context, url string) error {
	key, err := splitURL(url, "file")
	if err != nil {
		return err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	if dir := filepath.Dir(p); dir != s.root {
		os.Remove(dir)
	}
	return nil
}

// writeFile writes r to destPath through a temp file and rename, so a failed
// or short upload never leaves a partial file behind.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}
