package testutil

import (
	"auditflow/internal/blob"
)

// NewTestBlobStore creates an empty in-memory blob store.
func NewTestBlobStore() *blob.MemoryStore {
	return blob.NewMemoryStore()
}
