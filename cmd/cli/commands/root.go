package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"covid19-tracker/internal/chrono"
	"covid19-tracker/internal/config"
	"covid19-tracker/internal/crawler"
	"covid19-tracker/internal/stats"
	"covid19-tracker/internal/store"
	"covid19-tracker/internal/telemetry"
	"covid19-tracker/pkg/logger"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "covid19-cli",
	Short:         "covid19-cli fetches COVID-19 statistics and inspects what was stored.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (.yaml, .yml, .json or .json5)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path, overrides store.path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides logging.level")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is everything a command needs, built from the config and flags.
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	store *store.SQLite
	svc   *stats.Service
}

func (e *env) Close() error {
	return e.store.Close()
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	l := logger.NewWithLevel(cfg.Logging.Level, os.Stderr)
	tel := telemetry.NewSlogAPI(l.Slog())

	db, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	client := crawler.NewHTTPClient(cfg.HTTP.Timeout(), cfg.HTTP.DialTimeout(), cfg.HTTP.SizeCapBytes, tel).
		SetUserAgent(cfg.HTTP.UserAgent)
	svc := stats.NewService(client, db, chrono.NewStandardClock(), tel, stats.Sources{
		StatsURL:   cfg.Sources.StatsURL,
		HistoryURL: cfg.Sources.HistoryURL,
	}).SetNearMissThreshold(cfg.Naming.NearMissThreshold)
	return &env{cfg: cfg, log: l, store: db, svc: svc}, nil
}
