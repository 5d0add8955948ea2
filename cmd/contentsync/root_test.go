package cmd

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mebx/contentsync/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Content.Dir = filepath.Join(dir, "content")
	cfg.Content.TrackerFile = filepath.Join(dir, "config", "deleted_content.json")
	cfg.Content.HistoryDB = filepath.Join(dir, "config", "sync_history.db")
	return cfg
}

func TestBuildStackWithoutSourceURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Content.SourceURL = ""
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Local-state commands (status, list, deleted) build the stack with
	// no source configured; only the sync paths require it.
	stack, err := buildStack(cfg, logger)
	if err != nil {
		t.Fatalf("buildStack() error = %v, want local-only stack", err)
	}
	stack.Close()

	if err := requireSourceURL(cfg); err == nil {
		t.Error("requireSourceURL() should reject an empty source_url")
	}
	cfg.Content.SourceURL = "http://catalog.example.com/content.json"
	if err := requireSourceURL(cfg); err != nil {
		t.Errorf("requireSourceURL() error = %v", err)
	}
}
