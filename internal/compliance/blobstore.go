package compliance

import (
	"context"
	"fmt"
	"io"

	"auditflow/internal/model"
)

// BlobStore stores evidence uploads. Put returns the URL and display name the
// item keeps; Get streams a stored upload back by URL.
type BlobStore interface {
	// Put stores size bytes read from r under the display name.
	Put(ctx context.Context, name string, r io.Reader, size int64) (model.EvidenceFile, error)

	// Get writes the content stored at url to w.
	Get(ctx context.Context, url string, w io.Writer) error

	// Delete removes the content stored at url. Deleting missing content is
	// not an error.
	Delete(ctx context.Context, url string) error
}

// Upload is a file handed to the service for storing as evidence.
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Evidence is a supplier submission for one item.
type Evidence struct {
	Files        []Upload
	EvidenceText string
	Notes        string
}

// storeUploads puts every upload into the blob store. Any failure aborts the
// whole submission before state is touched, removing uploads already stored.
func (s *Service) storeUploads(ctx context.Context, uploads []Upload) ([]model.EvidenceFile, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("no blob store configured")
	}
	for _, u := range uploads {
		if u.Name == "" {
			return nil, invalid("upload name is required")
		}
	}
	files := make([]model.EvidenceFile, 0, len(uploads))
	for _, u := range uploads {
		f, err := s.blobs.Put(ctx, u.Name, u.Reader, u.Size)
		if err != nil {
			s.discardUploads(ctx, files)
			return nil, fmt.Errorf("storing %s: %w", u.Name, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// discardUploads removes stored files whose database write failed. Failures
// are logged; the caller already has an error to return.
func (s *Service) discardUploads(ctx context.Context, files []model.EvidenceFile) {
	for _, f := range files {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), f.URL); err != nil {
			s.logger.Warn("orphaned blob", "url", f.URL, "error", err)
		}
	}
}
