// Package services contains the reconciliation engine and the trigger
// coordinator that together keep the local content set in step with the
// remote catalog.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mebx/contentsync/pkg/content"
	"github.com/mebx/contentsync/pkg/data"
	"github.com/mebx/contentsync/pkg/transport"
)

// CatalogFetcher retrieves the remote manifest.
type CatalogFetcher interface {
	Fetch(ctx context.Context, timeout time.Duration) ([]content.Item, error)
}

// Transporter downloads a single item into destDir and returns the
// final filename (which may differ from the manifest name on the
// extraction path).
type Transporter interface {
	Transfer(ctx context.Context, item content.Item, destDir string, progress content.ProgressFunc) (string, error)
}

// DeletionTracker is the deleted-content record consulted before any
// automatic fetch.
type DeletionTracker interface {
	IsDeleted(cat content.Category, filename string) bool
	MarkRestored(cat content.Category, filename string) error
}

// HistoryStore records sync cycles and per-file manifest hashes.
type HistoryStore interface {
	RecordCycle(c *data.CycleRecord) error
	RecordHash(cat content.Category, name, hash string) error
	GetHash(cat content.Category, name string) (string, bool, error)
}

// Summary counts the outcome of one reconciliation pass.
type Summary struct {
	Fetched        int
	SkippedExists  int
	SkippedDeleted int
	Failed         int
}

// SyncStatus is the observable state exposed to the UI boundary so it
// can distinguish "never synced", "sync failed" and "up to date".
type SyncStatus struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   string
	LastSummary Summary
}

// Syncer is the reconciliation engine. One Syncer owns one content
// directory tree; passes are driven by the Coordinator one at a time.
type Syncer struct {
	fetcher      CatalogFetcher
	tracker      DeletionTracker
	repo         HistoryStore
	transport    Transporter
	contentDir   string
	timeout      time.Duration
	quickTimeout time.Duration
	logger       *slog.Logger
	progressChan chan content.DownloadProgress

	statusMu sync.RWMutex
	status   SyncStatus
}

// NewSyncer creates a Syncer.
func NewSyncer(fetcher CatalogFetcher, tracker DeletionTracker, repo HistoryStore,
	tr Transporter, contentDir string, timeout, quickTimeout time.Duration,
	logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		fetcher:      fetcher,
		tracker:      tracker,
		repo:         repo,
		transport:    tr,
		contentDir:   contentDir,
		timeout:      timeout,
		quickTimeout: quickTimeout,
		logger:       logger,
		progressChan: make(chan content.DownloadProgress, 100),
	}
}

// Progress returns the channel carrying per-file download progress.
func (s *Syncer) Progress() <-chan content.DownloadProgress {
	return s.progressChan
}

// Status returns a snapshot of the last pass outcome.
func (s *Syncer) Status() SyncStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Plan computes the action for every catalog item, in catalog order.
// It only reads state; no downloads happen here. Category directories
// are created as a side effect so the existence checks are meaningful.
func (s *Syncer) Plan(items []content.Item) []content.Decision {
	decisions := make([]content.Decision, 0, len(items))
	for _, item := range items {
		dir := filepath.Join(s.contentDir, item.Category.Dir())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			// Never fatal for the item; the transfer will surface the
			// real filesystem error if the directory is unusable.
			s.logger.Warn("could not ensure category directory", "dir", dir, "error", err)
		}

		if s.tracker.IsDeleted(item.Category, item.Name) {
			decisions = append(decisions, content.Decision{Item: item, Action: content.ActionSkipDeleted})
			continue
		}

		exists := s.existsLocally(item, dir)
		if !exists {
			decisions = append(decisions, content.Decision{Item: item, Action: content.ActionFetch})
			continue
		}

		if s.isStale(item) {
			decisions = append(decisions, content.Decision{Item: item, Action: content.ActionFetch, Stale: true})
			continue
		}

		decisions = append(decisions, content.Decision{Item: item, Action: content.ActionSkipExists})
	}
	return decisions
}

// existsLocally checks for the item on disk. Extraction-sourced items
// match on base name across the accepted video extensions because the
// extractor chooses the container.
func (s *Syncer) existsLocally(item content.Item, dir string) bool {
	if transport.Classify(item.URL) == transport.KindExtraction {
		base := strings.TrimSuffix(item.Name, filepath.Ext(item.Name))
		for _, ext := range content.VideoExtensions {
			if _, err := os.Stat(filepath.Join(dir, base+ext)); err == nil {
				return true
			}
		}
		return false
	}
	_, err := os.Stat(filepath.Join(dir, item.Name))
	return err == nil
}

// isStale reports whether a present file should be re-fetched because
// the manifest hash moved on. Items without a hash, or without a
// recorded hash (downloaded before hash tracking), are never stale.
// Extraction items carry no usable hash: the extractor re-encodes.
func (s *Syncer) isStale(item content.Item) bool {
	if item.Hash == "" || transport.Classify(item.URL) == transport.KindExtraction {
		return false
	}
	recorded, ok, err := s.repo.GetHash(item.Category, item.Name)
	if err != nil {
		s.logger.Warn("hash lookup failed", "file", item.Name, "error", err)
		return false
	}
	return ok && recorded != item.Hash
}

// Sync runs one full reconciliation pass. A catalog-level failure
// aborts the pass; per-item failures are logged and counted but never
// abort the batch. The pass is recorded in the history store either
// way. On-demand passes apply the quick timeout to the catalog fetch
// and to every download.
func (s *Syncer) Sync(ctx context.Context, trig data.Trigger) (Summary, error) {
	quick := trig == data.TriggerOnDemand
	timeout := s.timeout
	if quick {
		timeout = s.quickTimeout
	}

	started := time.Now()
	items, err := s.fetcher.Fetch(ctx, timeout)
	if err != nil {
		s.logger.Error("catalog fetch failed", "error", err)
		s.finishCycle(trig, started, Summary{}, err)
		return Summary{}, err
	}

	if !quick {
		s.logger.Info("checking for content updates", "items", len(items))
	}

	var sum Summary
	for _, dec := range s.Plan(items) {
		switch dec.Action {
		case content.ActionSkipDeleted:
			sum.SkippedDeleted++
			if !quick {
				s.logger.Info("skipping user-deleted item", "file", dec.Item.Name)
			}
		case content.ActionSkipExists:
			sum.SkippedExists++
		case content.ActionFetch:
			if err := s.fetchItem(ctx, dec.Item, timeout); err != nil {
				sum.Failed++
				s.logger.Error("download failed", "file", dec.Item.Name, "error", err)
				s.sendProgress(content.DownloadProgress{Filename: dec.Item.Name, Err: err})
				continue
			}
			sum.Fetched++
			if !quick {
				reason := "new"
				if dec.Stale {
					reason = "stale"
				}
				s.logger.Info("downloaded", "file", dec.Item.Name, "category", dec.Item.Category, "reason", reason)
			}
		}
	}

	s.finishCycle(trig, started, sum, nil)
	if !quick {
		s.logger.Info("content check finished",
			"fetched", sum.Fetched, "exists", sum.SkippedExists,
			"deleted", sum.SkippedDeleted, "failed", sum.Failed)
	}
	return sum, nil
}

// RedownloadDeleted locates (category, filename) in a fresh catalog and
// fetches it unconditionally; restore is the explicit override of the
// deletion skip. On success the deletion record entry is cleared. When
// the item is no longer in the catalog the record is left untouched.
func (s *Syncer) RedownloadDeleted(ctx context.Context, cat content.Category, filename string, progress content.ProgressFunc) error {
	started := time.Now()
	items, err := s.fetcher.Fetch(ctx, s.timeout)
	if err != nil {
		s.finishCycle(data.TriggerManual, started, Summary{}, err)
		return err
	}

	for _, item := range items {
		if item.Category != cat || item.Name != filename {
			continue
		}
		if err := s.transferItem(ctx, item, s.timeout, progress); err != nil {
			s.finishCycle(data.TriggerManual, started, Summary{Failed: 1}, nil)
			return err
		}
		if err := s.tracker.MarkRestored(cat, filename); err != nil {
			s.logger.Error("could not clear deletion record", "file", filename, "error", err)
		}
		s.finishCycle(data.TriggerManual, started, Summary{Fetched: 1}, nil)
		s.logger.Info("restored deleted item", "category", cat, "file", filename)
		return nil
	}

	return fmt.Errorf("%w: %s/%s", content.ErrNotFound, cat, filename)
}

// List returns the filenames present under a category directory,
// filtered to the extensions meaningful for that category.
func (s *Syncer) List(cat content.Category) ([]string, error) {
	dir := filepath.Join(s.contentDir, cat.Dir())
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}

	exts := content.BookExtensions
	if cat == content.Video {
		exts = content.VideoExtensions
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				names = append(names, e.Name())
				break
			}
		}
	}
	return names, nil
}

// fetchItem downloads one item through the shared progress channel and
// records its manifest hash on success.
func (s *Syncer) fetchItem(ctx context.Context, item content.Item, timeout time.Duration) error {
	return s.transferItem(ctx, item, timeout, func(name string, frac float64) {
		s.sendProgress(content.DownloadProgress{Filename: name, Fraction: frac})
	})
}

// transferItem bounds the transfer with the pass's timeout, so quick
// passes stay short-budget on the downloads too, not just the catalog
// fetch.
func (s *Syncer) transferItem(ctx context.Context, item content.Item, timeout time.Duration, progress content.ProgressFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := filepath.Join(s.contentDir, item.Category.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}
	if _, err := s.transport.Transfer(ctx, item, dir, progress); err != nil {
		return err
	}
	if item.Hash != "" {
		if err := s.repo.RecordHash(item.Category, item.Name, item.Hash); err != nil {
			s.logger.Warn("could not record file hash", "file", item.Name, "error", err)
		}
	}
	return nil
}

func (s *Syncer) finishCycle(trig data.Trigger, started time.Time, sum Summary, fatal error) {
	rec := &data.CycleRecord{
		StartedAt:      started,
		FinishedAt:     time.Now(),
		Trigger:        trig,
		Fetched:        sum.Fetched,
		SkippedExists:  sum.SkippedExists,
		SkippedDeleted: sum.SkippedDeleted,
		Failed:         sum.Failed,
	}
	if fatal != nil {
		rec.Error = fatal.Error()
	}
	if err := s.repo.RecordCycle(rec); err != nil {
		s.logger.Warn("could not record sync cycle", "error", err)
	}

	s.statusMu.Lock()
	s.status.LastAttempt = rec.FinishedAt
	s.status.LastSummary = sum
	if fatal != nil {
		s.status.LastError = fatal.Error()
	} else {
		s.status.LastError = ""
		s.status.LastSuccess = rec.FinishedAt
	}
	s.statusMu.Unlock()
}

// sendProgress delivers a progress event without ever blocking a
// transfer on a slow consumer.
func (s *Syncer) sendProgress(p content.DownloadProgress) {
	select {
	case s.progressChan <- p:
	default:
	}
}

// Close releases the progress channel.
func (s *Syncer) Close() {
	close(s.progressChan)
}
