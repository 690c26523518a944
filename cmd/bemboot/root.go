package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/s-celles/bemserver-core/internal/config"
	"github.com/s-celles/bemserver-core/internal/telemetry"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "bemboot",
	Short: "BEMServer deployment bootstrap",
	Long: `bemboot prepares a BEMServer deployment and starts the application
server. It renders the application settings file, ensures the Postgres
database and the Celery broker are in place, then hands the process over
to gunicorn (production) or the Flask development server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to .env file (default ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogger(logLevel)

		if err := loadEnvFile(envFile); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// --log-level flag takes precedence over the value in the config file.
		if cmd.Flags().Changed("log-level") {
			cfg.Telemetry.LogLevel = logLevel
		} else if cfg.Telemetry.LogLevel != "" {
			initLogger(cfg.Telemetry.LogLevel)
		}

		app, err = buildAppContext(cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}

		return nil
	}

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(preflightCmd)
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvFile loads deployment environment defaults from a .env file before
// viper reads the environment. An explicitly named file must exist; the
// implicit ./.env is optional.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(telemetry.NewSpanHandler(handler)))
}
