package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"auditflow/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "auditflow.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "auditflow.key"),
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("configures keys", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if e.IsConfigured() {
			t.Fatal("IsConfigured() = true before Setup, want false")
		}
		if err := e.Setup("test-passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup, want true")
		}

		info, err := os.Stat(e.privateKeyPath)
		if err != nil {
			t.Fatalf("stat private key: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("private key mode = %v, want 0600", perm)
		}

		pub, err := e.PublicKey()
		if err != nil {
			t.Fatalf("PublicKey() error = %v", err)
		}
		if !strings.HasPrefix(pub, "age1") {
			t.Errorf("PublicKey() = %q, want age1 prefix", pub)
		}
	})

	t.Run("refuses to overwrite keys", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if err := e.Setup("first"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		before, _ := os.ReadFile(e.publicKeyPath)

		if err := e.Setup("second"); !errors.Is(err, ErrKeysExist) {
			t.Errorf("second Setup() error = %v, want ErrKeysExist", err)
		}
		after, _ := os.ReadFile(e.publicKeyPath)
		if !bytes.Equal(before, after) {
			t.Error("public key changed after refused Setup")
		}
	})

	t.Run("rejects empty passphrase", func(t *testing.T) {
		e := newTestAgeEncryptor(t)
		if err := e.Setup(""); err == nil {
			t.Error("Setup(\"\") expected error")
		}
	})
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	passphrase := "test-passphrase"
	e := newTestAgeEncryptor(t)
	if err := e.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	dc, err := e.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "pdf header", input: []byte("%PDF-1.7 fake certificate")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("evidence"), 20000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(encrypted.Bytes(), tt.input) {
				t.Error("ciphertext contains plaintext")
			}

			var decrypted bytes.Buffer
			if err := dc.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_EncryptWithFreshInstance(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	// A second instance over the same files reads the public key from disk.
	other := &AgeEncryptor{publicKeyPath: e.publicKeyPath, privateKeyPath: e.privateKeyPath}
	var encrypted bytes.Buffer
	if err := other.Encrypt(strings.NewReader("hello"), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	dc, err := e.Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var out bytes.Buffer
	if err := dc.Decrypt(&encrypted, &out); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if out.String() != "hello" {
		t.Errorf("Decrypt() = %q, want hello", out.String())
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong-passphrase"); err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_BeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Encrypt(strings.NewReader("x"), &bytes.Buffer{}); err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
	if _, err := e.Unlock("x"); err == nil {
		t.Error("Unlock() before Setup should return error")
	}
}
