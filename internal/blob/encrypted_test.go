package blob

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"auditflow/internal/config"
	"auditflow/internal/encryption"
)

func TestEncryptedStore_Stub(t *testing.T) {
	inner := NewMemoryStore()
	store := NewEncryptedStore(inner, encryption.NewStubEncryptor())
	if err := store.Unlock(""); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	storeContract(t, store, "mem")
}

func TestEncryptedStore_Age(t *testing.T) {
	dir := t.TempDir()
	enc := encryption.NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "auditflow.pub"),
		PrivateKeyPath: filepath.Join(dir, "auditflow.key"),
	})
	if err := enc.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	ctx := context.Background()
	inner := NewMemoryStore()
	store := NewEncryptedStore(inner, enc)

	plaintext := "lab results: pass"
	f, err := store.Put(ctx, "lab.txt", strings.NewReader(plaintext), int64(len(plaintext)))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	t.Run("inner store holds ciphertext", func(t *testing.T) {
		var raw bytes.Buffer
		if err := inner.Get(ctx, f.URL, &raw); err != nil {
			t.Fatalf("inner Get() error = %v", err)
		}
		if strings.Contains(raw.String(), plaintext) {
			t.Error("inner store contains plaintext")
		}
	})

	t.Run("locked store refuses reads", func(t *testing.T) {
		if err := store.Get(ctx, f.URL, &bytes.Buffer{}); !errors.Is(err, ErrLocked) {
			t.Errorf("Get() error = %v, want ErrLocked", err)
		}
	})

	t.Run("wrong passphrase stays locked", func(t *testing.T) {
		if err := store.Unlock("nope"); err == nil {
			t.Fatal("Unlock() with wrong passphrase expected error")
		}
		if err := store.Get(ctx, f.URL, &bytes.Buffer{}); !errors.Is(err, ErrLocked) {
			t.Errorf("Get() error = %v, want ErrLocked", err)
		}
	})

	t.Run("unlocked store decrypts", func(t *testing.T) {
		if err := store.Unlock("pw"); err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		var out bytes.Buffer
		if err := store.Get(ctx, f.URL, &out); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if out.String() != plaintext {
			t.Errorf("Get() = %q, want %q", out.String(), plaintext)
		}
	})
}
