package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"auditflow/internal/app"
	"auditflow/internal/config"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env, then the config file, then applies env overrides.
func loadConfig() (*config.Config, string, error) {
	if err := app.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	app.ApplyEnv(cfg)
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp(ctx context.Context, operation string) (*app.App, *config.Config, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, operation)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, cfg, nil
}

var rootCmd = &cobra.Command{
	Use:          "auditflow",
	Short:        "Supply-chain compliance audits",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.LoadDotEnv(); err != nil {
			return err
		}
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Set %s (or [server] jwt_secret) before running `auditflow serve`.\n", app.EnvJWTSecret)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		secret := "(not set)"
		if cfg.Server.JWTSecret != "" {
			secret = "(set)"
		}
		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Blob Store: %s\n", cfg.Blob.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Listen:     %s\n", cfg.Server.Addr)
		fmt.Printf("JWT Secret: %s\n", secret)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage evidence encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the evidence encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}
		recipient, err := app.SetupKeys(cfg, passphrase)
		if err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		if recipient != "" {
			fmt.Printf("Public key: %s\n", recipient)
		}
		return nil
	},
}

// readPassphrase takes AUDITFLOW_KEY_PASSPHRASE when set, otherwise prompts
// twice on the terminal.
func readPassphrase() (string, error) {
	if p := os.Getenv(app.EnvKeyPassphrase); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for a passphrase; set %s", app.EnvKeyPassphrase)
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	fmt.Fprint(os.Stderr, "Repeat passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the most recent schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Rollback(cfg, steps); err != nil {
			return err
		}
		fmt.Printf("Rolled back %d migration(s).\n", steps)
		return nil
	},
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in checklist templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, _, err := newApp(ctx, "seed")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.SeedCatalog(ctx)
		if err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
		fmt.Printf("Added %d template(s)\n", n)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, cfg, err := newApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv, err := a.NewServer()
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(addr) }()
		fmt.Printf("Listening on %s\n", addr)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return <-errCh
	},
}

// certificate command
var certificateCmd = &cobra.Command{
	Use:   "certificate AUDIT_ID",
	Short: "Export an audit certificate workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preview, _ := cmd.Flags().GetBool("preview")
		out, _ := cmd.Flags().GetString("output")

		ctx := cmd.Context()
		a, _, err := newApp(ctx, "certificate")
		if err != nil {
			return err
		}
		defer a.Close()

		if out == "" {
			kind := "certificate"
			if preview {
				kind = "preview"
			}
			out = fmt.Sprintf("audit-%s-%s.xlsx", args[0], kind)
		}

		var w io.Writer = os.Stdout
		if out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}

		if err := a.WriteCertificate(ctx, args[0], preview, w); err != nil {
			if out != "-" {
				os.Remove(out)
			}
			return err
		}
		if out != "-" {
			fmt.Printf("Wrote %s\n", out)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	dbRollbackCmd.Flags().Int("steps", 1, "Number of migrations to revert")
	dbCmd.AddCommand(dbSeedCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(certificateCmd)
	certificateCmd.Flags().Bool("preview", false, "Render an unapproved audit with its current item statuses")
	certificateCmd.Flags().StringP("output", "o", "", "Output file, or - for stdout")
}
