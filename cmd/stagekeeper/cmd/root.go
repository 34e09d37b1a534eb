package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/solatis/stagekeeper/internal/core/config"
	"github.com/solatis/stagekeeper/internal/core/db"
	"github.com/solatis/stagekeeper/internal/core/logging"
	"github.com/solatis/stagekeeper/internal/rules"
)

// Version is the release version reported by the CLI.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:     "stagekeeper",
	Short:   "StageKeeper multi-stage transaction monitoring rules",
	Long:    `StageKeeper validates multi-stage transaction monitoring rules, renders them in canonical form and serves them to evaluators over gRPC.`,
	Version: Version,

	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads .env files, configuration and the logger for every command.
// Flags override configuration only when set explicitly.
func setup(cmd *cobra.Command, args []string) error {
	loadEnvFiles(configFile)

	loaded, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		loaded.Database.URL = dbURL
	}
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		loaded.Log.Format = logFormat
	}

	l, closer, err := logging.New(loaded.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, logger, logCloser = loaded, l, closer
	slog.SetDefault(logger)
	return nil
}

// loadEnvFiles loads .env and .env.local from the working directory and the
// config file's directory. Missing files are ignored and set variables win.
func loadEnvFiles(configPath string) {
	envFiles := []string{".env", ".env.local"}
	dirs := []string{"."}
	if configPath != "" {
		dirs = append(dirs, filepath.Dir(configPath))
	}
	for _, dir := range dirs {
		for _, envFile := range envFiles {
			_ = godotenv.Load(filepath.Join(dir, envFile))
		}
	}
}

// openDatabase opens the configured database.
func openDatabase() (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("--db-url or database.url required")
	}
	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// openCurrentDatabase opens the database and requires every migration applied.
func openCurrentDatabase() (*sqlx.DB, *db.Queries, error) {
	database, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	if err := db.RequireCurrent(database); err != nil {
		database.Close()
		return nil, nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

// buildCatalog builds the configured catalog with its static lists.
func buildCatalog() (*rules.Catalog, error) {
	cat, err := cfg.Catalog.BuildCatalog(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	return cat, nil
}
