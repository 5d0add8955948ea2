package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/mebx/contentsync/pkg/catalog"
	"github.com/mebx/contentsync/pkg/config"
	"github.com/mebx/contentsync/pkg/data"
	"github.com/mebx/contentsync/pkg/services"
	"github.com/mebx/contentsync/pkg/tracker"
	"github.com/mebx/contentsync/pkg/transport"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "contentsync",
	Short: "Kiosk content synchronization daemon",
	Long:  "Keeps the kiosk's books and videos in sync with the remote catalog and tracks user deletions",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadEnv()
		if err != nil {
			cobra.CheckErr(err)
		}
		if !cfg.Content.Enabled {
			fmt.Println("ℹ️  Content sync is disabled in app_config.json, nothing to do.")
			return
		}
		if err := requireSourceURL(cfg); err != nil {
			cobra.CheckErr(err)
		}

		stack, err := buildStack(cfg, logger)
		if err != nil {
			cobra.CheckErr(err)
		}
		defer stack.Close()

		transport.SweepPartials(cfg.Content.Dir, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Progress stream feeds the log; the kiosk UI consumes the same
		// channel when embedding this package.
		go func() {
			for p := range stack.Syncer.Progress() {
				if p.Err != nil {
					continue
				}
				logger.Debug("download progress", "file", p.Filename, "fraction", p.Fraction)
			}
		}()

		coordinator := services.NewCoordinator(stack.Syncer, cfg.Content.Interval(), logger)

		handler := &sutureslog.Handler{Logger: logger}
		sup := suture.New("contentsync", suture.Spec{EventHook: handler.MustHook()})
		sup.Add(coordinator)

		logger.Info("background content downloader started", "interval", cfg.Content.Interval())
		if err := sup.Serve(ctx); err != nil && ctx.Err() == nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing app_config.json")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deletedCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stack bundles everything a command needs, with a single Close.
type stack struct {
	Syncer  *services.Syncer
	Tracker *tracker.Tracker
	Repo    *data.Repository
}

func (s *stack) Close() {
	s.Syncer.Close()
	s.Repo.Close()
}

func loadEnv() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := setupLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// requireSourceURL guards the commands that talk to the remote catalog.
// Local-state commands (status, list, deleted) work without it.
func requireSourceURL(cfg *config.Config) error {
	if cfg.Content.SourceURL == "" {
		return fmt.Errorf("content.source_url is not configured")
	}
	return nil
}

func buildStack(cfg *config.Config, logger *slog.Logger) (*stack, error) {
	trk, err := tracker.New(cfg.Content.TrackerFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open deletion tracker: %w", err)
	}

	db, err := data.InitDuckDB(cfg.Content.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	repo, err := data.NewRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	fetcher := catalog.NewFetcher(cfg.Content.SourceURL, logger)
	tr := transport.New(cfg.Content.Timeout(), cfg.Content.MaxResolution, logger)
	syncer := services.NewSyncer(fetcher, trk, repo, tr,
		cfg.Content.Dir, cfg.Content.Timeout(), cfg.Content.QuickTimeout(), logger)

	return &stack{Syncer: syncer, Tracker: trk, Repo: repo}, nil
}

func setupLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
