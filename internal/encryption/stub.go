package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// stubHeader marks content written by StubEncryptor.
var stubHeader = []byte("AFSTUB\x00\x00")

// ErrWrongPassphrase is returned by StubEncryptor.Unlock.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// StubEncryptor is a deterministic Encryptor for tests and local
// development. It prepends a fixed header instead of encrypting.
type StubEncryptor struct {
	passphrase string
	configured bool
}

var _ Encryptor = (*StubEncryptor)(nil)

// NewStubEncryptor returns a StubEncryptor that unlocks with any passphrase
// until Setup records one.
func NewStubEncryptor() *StubEncryptor {
	return &StubEncryptor{configured: true}
}

func (e *StubEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *StubEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(stubHeader); err != nil {
		return fmt.Errorf("writing stub header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *StubEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return StubDecryptionContext{}, nil
}

func (e *StubEncryptor) IsConfigured() bool { return e.configured }

// StubDecryptionContext strips the header added by StubEncryptor.
type StubDecryptionContext struct{}

func (StubDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(stubHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading stub header: %w", err)
	}
	if !bytes.Equal(header, stubHeader) {
		return fmt.Errorf("invalid stub encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
