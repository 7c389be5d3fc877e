package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

// MemoryStore keeps uploads in memory under mem:// URLs. It is safe for
// concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	content map[string][]byte
}

var _ compliance.BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{content: make(map[string][]byte)}
}

// Put stores exactly size bytes read from r.
func (m *MemoryStore) Put(ctx context.Context, name string, r io.Reader, size int64) (model.EvidenceFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.EvidenceFile{}, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return model.EvidenceFile{}, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	key := newKey(name)
	m.mu.Lock()
	m.content[key] = data
	m.mu.Unlock()

	return model.EvidenceFile{URL: "mem://" + key, Name: name}, nil
}

// Get writes the content stored at url to w.
func (m *MemoryStore) Get(ctx context.Context, url string, w io.Writer) error {
	key, err := splitURL(url, "mem")
	if err != nil {
		return err
	}

	m.mu.RLock()
	data, ok := m.content[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", url, ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Delete removes the upload stored at url.
func (m *MemoryStore) Delete(ctx context.Context, url string) error {
	key, err := splitURL(url, "mem")
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.content, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored uploads.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}
