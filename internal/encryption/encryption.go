// Package encryption encrypts evidence files at rest.
package encryption

import (
	"errors"
	"io"
)

// ErrKeysExist is returned by Setup when a key pair is already present.
var ErrKeysExist = errors.New("encryption keys already exist")

// Encryptor encrypts evidence content with a public key and unlocks the
// matching private key for reading it back.
type Encryptor interface {
	// Setup generates a key pair, storing the private key protected by
	// passphrase. Called once by `auditflow keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	// Needs only the public key.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with the passphrase. The returned
	// context stays valid for the life of the process.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether a key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
