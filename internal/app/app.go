// Package app wires configuration, storage and the compliance service
// together for the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"auditflow/internal/blob"
	"auditflow/internal/catalog"
	"auditflow/internal/certificate"
	"auditflow/internal/compliance"
	"auditflow/internal/config"
	"auditflow/internal/database"
	"auditflow/internal/encryption"
	"auditflow/internal/httpapi"
)

// App is the application layer between the CLI and the compliance Service.
// It constructs all dependencies from config and closes them on Close.
type App struct {
	cfg     *config.Config
	store   database.Store
	blobs   compliance.BlobStore
	logger  *slog.Logger
	service *compliance.Service
	logFile *os.File
}

// New creates a fully wired App from the given config. operation names the
// CLI command being run and tags every log line. The database schema must be
// current; see Migrate. The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date (run `auditflow db migrate`): %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		store.Close()
		return nil, fmt.Errorf("encryption keys are not set up (run `auditflow keys init`)")
	}

	blobs, err := blob.NewStoreFromConfig(ctx, cfg.Blob, enc)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	runID := fmt.Sprintf("%s-%s", operation, time.Now().UTC().Format("20060102T150405Z"))
	logger, logFile, err := newLogger(cfg.LogDir, runID, slog.LevelInfo)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// Uploads only need the public key; downloads stay locked until a
	// passphrase is supplied.
	if es, ok := blobs.(*blob.EncryptedStore); ok {
		if pass := os.Getenv(EnvKeyPassphrase); pass != "" {
			if err := es.Unlock(pass); err != nil {
				store.Close()
				logFile.Close()
				return nil, err
			}
		} else {
			logger.Warn("evidence key locked; downloads and certificates will fail", "env", EnvKeyPassphrase)
		}
	}

	svc := compliance.NewService(store, blobs, &slogAdapter{l: logger},
		compliance.RealClock{}, compliance.UUIDGenerator{}, compliance.RandomCodeGenerator{})

	return &App{
		cfg:     cfg,
		store:   store,
		blobs:   blobs,
		logger:  logger,
		service: svc,
		logFile: logFile,
	}, nil
}

// Migrate applies pending schema migrations to the configured database.
func Migrate(cfg *config.Config) error {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Rollback reverts the last steps schema migrations of the configured
// database.
func Rollback(cfg *config.Config, steps int) error {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer store.Close()

	if err := store.Rollback(steps); err != nil {
		return fmt.Errorf("rolling back database: %w", err)
	}
	return nil
}

// SetupKeys generates the evidence encryption key pair and returns the public
// recipient, when the encryptor has one. Existing keys are never overwritten.
func SetupKeys(cfg *config.Config, passphrase string) (string, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return "", fmt.Errorf("encryption is disabled; set [encryption] type = \"age\" first")
	}
	if err := enc.Setup(passphrase); err != nil {
		return "", err
	}
	if k, ok := enc.(interface{ PublicKey() (string, error) }); ok {
		return k.PublicKey()
	}
	return "", nil
}

// Service exposes the wired compliance service.
func (a *App) Service() *compliance.Service { return a.service }

// SeedCatalog loads the built-in checklist templates. Existing templates are
// left alone.
func (a *App) SeedCatalog(ctx context.Context) (int, error) {
	return catalog.Seed(ctx, a.store, &slogAdapter{l: a.logger})
}

// WriteCertificate renders the certificate workbook for auditID to w.
func (a *App) WriteCertificate(ctx context.Context, auditID string, preview bool, w io.Writer) error {
	return a.service.RenderCertificate(ctx, auditID, preview, &certificate.XLSXRenderer{}, w)
}

// NewServer builds the HTTP API. A JWT secret must be configured, either in
// the config file or through AUDITFLOW_JWT_SECRET.
func (a *App) NewServer() (*httpapi.Server, error) {
	ttl := time.Duration(a.cfg.Server.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	tokens, err := httpapi.NewTokenIssuer(a.cfg.Server.JWTSecret, ttl, nil)
	if err != nil {
		return nil, fmt.Errorf("configuring tokens (set %s or [server] jwt_secret): %w", EnvJWTSecret, err)
	}
	return httpapi.NewServer(httpapi.Options{
		Service:  a.service,
		Tokens:   tokens,
		Renderer: &certificate.XLSXRenderer{},
		Logger:   &slogAdapter{l: a.logger.With("component", "http")},
		Metrics:  httpapi.NewMetrics("auditflow"),
	})
}

// Close closes the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
