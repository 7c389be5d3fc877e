package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"auditflow/internal/compliance"
	"auditflow/internal/encryption"
	"auditflow/internal/model"
)

// ErrLocked is returned by EncryptedStore.Get before Unlock.
var ErrLocked = errors.New("encrypted blob store is locked")

// EncryptedStore encrypts uploads before handing them to an inner store and
// decrypts them on the way out. Writing needs only the public key; reading
// needs the store to be unlocked with the key passphrase.
type EncryptedStore struct {
	inner compliance.BlobStore
	enc   encryption.Encryptor
	dec   encryption.DecryptionContext
}

var _ compliance.BlobStore = (*EncryptedStore)(nil)

// NewEncryptedStore wraps inner with enc.
func NewEncryptedStore(inner compliance.BlobStore, enc encryption.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc}
}

// Unlock enables Get by unlocking the private key.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dec, err := s.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking evidence key: %w", err)
	}
	s.dec = dec
	return nil
}

// Put encrypts size bytes read from r and stores the ciphertext.
func (s *EncryptedStore) Put(ctx context.Context, name string, r io.Reader, size int64) (model.EvidenceFile, error) {
	counted := &countingReader{r: r}
	var ciphertext bytes.Buffer
	if err := s.enc.Encrypt(counted, &ciphertext); err != nil {
		return model.EvidenceFile{}, fmt.Errorf("encrypting %s: %w", name, err)
	}
	if counted.n != size {
		return model.EvidenceFile{}, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}
	return s.inner.Put(ctx, name, &ciphertext, int64(ciphertext.Len()))
}

// Delete removes the ciphertext stored at url. It works while locked.
func (s *EncryptedStore) Delete(ctx context.Context, url string) error {
	return s.inner.Delete(ctx, url)
}

// Get fetches and decrypts the content stored at url.
func (s *EncryptedStore) Get(ctx context.Context, url string, w io.Writer) error {
	if s.dec == nil {
		return ErrLocked
	}
	var ciphertext bytes.Buffer
	if err := s.inner.Get(ctx, url, &ciphertext); err != nil {
		return err
	}
	if err := s.dec.Decrypt(&ciphertext, w); err != nil {
		return fmt.Errorf("decrypting %s: %w", url, err)
	}
	return nil
}
