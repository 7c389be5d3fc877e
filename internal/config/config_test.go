package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/auditflow",
		LogDir:  "/home/user/.local/share/auditflow/log",
		Database: DatabaseConfig{
			Type: "postgres",
			DSN:  "host=localhost user=audit dbname=audit sslmode=disable",
		},
		Blob: BlobConfig{
			Type:     "s3",
			S3Bucket: "evidence",
			S3Prefix: "prod",
			S3Region: "ap-southeast-2",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/keys/auditflow.pub",
			PrivateKeyPath: "/keys/auditflow.key",
		},
		Server: ServerConfig{Addr: "127.0.0.1:9000", JWTSecret: "s3cret", TokenTTLHours: 8},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Blob != original.Blob {
		t.Errorf("Blob = %+v, want %+v", got.Blob, original.Blob)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Server != original.Server {
		t.Errorf("Server = %+v, want %+v", got.Server, original.Server)
	}
}

func TestManager_Read_TaggedUnion(t *testing.T) {
	input := `
base_dir = "/srv/auditflow"

[database]
type = "memory"

[blob]
type = "filesystem"
root = "/srv/evidence"
`
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Database.Type != "memory" || cfg.Database.DataDir != "" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Blob.Type != "filesystem" || cfg.Blob.Root != "/srv/evidence" {
		t.Errorf("Blob = %+v", cfg.Blob)
	}
	if cfg.Encryption.Type != "" {
		t.Errorf("Encryption.Type = %q, want empty", cfg.Encryption.Type)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/auditflow")

	if cfg.BaseDir != "/data/auditflow" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/auditflow")
	}
	if cfg.LogDir != "/data/auditflow/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/auditflow/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/auditflow/db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Blob.Type != "filesystem" || cfg.Blob.Root != "/data/auditflow/evidence" {
		t.Errorf("Blob = %+v", cfg.Blob)
	}
	if cfg.Encryption.Type != "none" {
		t.Errorf("Encryption.Type = %q, want none", cfg.Encryption.Type)
	}
	if cfg.Encryption.PublicKeyPath != "/data/auditflow/keys/auditflow.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.TokenTTLHours != 24 {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "auditflow.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %v, want 0600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "auditflow.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "auditflow.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/auditflow.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
