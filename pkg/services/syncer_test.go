package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mebx/contentsync/pkg/content"
	"github.com/mebx/contentsync/pkg/data"
	"github.com/mebx/contentsync/pkg/tracker"
)

// Mock implementations for testing

type mockFetcher struct {
	fetchFunc func(ctx context.Context, timeout time.Duration) ([]content.Item, error)
	calls     int
	mu        sync.Mutex
}

func (m *mockFetcher) Fetch(ctx context.Context, timeout time.Duration) ([]content.Item, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, timeout)
	}
	return nil, nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockTransport struct {
	transferFunc func(ctx context.Context, item content.Item, destDir string, progress content.ProgressFunc) (string, error)
	calls        []string
	mu           sync.Mutex
}

func (m *mockTransport) Transfer(ctx context.Context, item content.Item, destDir string, progress content.ProgressFunc) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, item.Name)
	m.mu.Unlock()
	if m.transferFunc != nil {
		return m.transferFunc(ctx, item, destDir, progress)
	}
	// Default: behave like a successful direct download.
	path := filepath.Join(destDir, item.Name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		return "", err
	}
	if progress != nil {
		progress(item.Name, 1.0)
	}
	return item.Name, nil
}

func (m *mockTransport) transferred() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

type memRepo struct {
	mu     sync.Mutex
	hashes map[string]string
	cycles []*data.CycleRecord
}

func newMemRepo() *memRepo {
	return &memRepo{hashes: make(map[string]string)}
}

func (m *memRepo) RecordCycle(c *data.CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, c)
	return nil
}

func (m *memRepo) RecordHash(cat content.Category, name, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[string(cat)+"/"+name] = hash
	return nil
}

func (m *memRepo) GetHash(cat content.Category, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[string(cat)+"/"+name]
	return h, ok, nil
}

func (m *memRepo) lastCycle() *data.CycleRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cycles) == 0 {
		return nil
	}
	return m.cycles[len(m.cycles)-1]
}

// Test helpers

func newTestTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	trk, err := tracker.New(filepath.Join(t.TempDir(), "deleted_content.json"), nil)
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	return trk
}

func catalogOf(items ...content.Item) *mockFetcher {
	return &mockFetcher{
		fetchFunc: func(context.Context, time.Duration) ([]content.Item, error) {
			return items, nil
		},
	}
}

func newTestSyncer(t *testing.T, fetcher *mockFetcher, tr *mockTransport) (*Syncer, *tracker.Tracker, *memRepo, string) {
	t.Helper()
	trk := newTestTracker(t)
	repo := newMemRepo()
	contentDir := t.TempDir()
	s := NewSyncer(fetcher, trk, repo, tr, contentDir, 5*time.Second, time.Second, nil)
	return s, trk, repo, contentDir
}

func TestSync_FetchesMissingItems(t *testing.T) {
	fetcher := catalogOf(
		content.Item{Name: "a.pdf", Category: content.Book, URL: "http://files.example.com/a.pdf"},
		content.Item{Name: "v.mp4", Category: content.Video, URL: "http://files.example.com/v.mp4"},
	)
	tr := &mockTransport{}
	s, _, _, contentDir := newTestSyncer(t, fetcher, tr)
	defer s.Close()

	sum, err := s.Sync(context.Background(), data.TriggerPeriodic)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if sum.Fetched != 2 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 fetched", sum)
	}

	for _, rel := range []string{"books/a.pdf", "videos/v.mp4"} {
		if _, err := os.Stat(filepath.Join(contentDir, rel)); err != nil {
			t.Errorf("expected %s on disk: %v", rel, err)
		}
	}
}

func TestSync_Idempotent(t *testing.T) {
	fetcher := catalogOf(
		content.Item{Name: "a.pdf", Category: content.Book, URL: "http://files.example.com/a.pdf"},
		content.Item{Name: "b.pdf", Category: content.Book, URL: "http://files.example.com/b.pdf"},
	)
	tr := &mockTransport{}
	s, _, _, _ := newTestSyncer(t, fetcher, tr)
	defer s.Close()

	first, err := s.Sync(context.Background(), data.TriggerPeriodic)
	if err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	if first.Fetched != 2 {
		t.Fatalf("first pass fetched %d, want 2", first.Fetched)
	}

	second, err := s.Sync(context.Background(), data.TriggerPeriodic)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if second.Fetched != 0 || second.SkippedExists != 2 {
		t.Fatalf("second pass = %+v, want zero fetches", second)
	}
	if calls := tr.transferred(); len(calls) != 2 {
		t.Fatalf("transport called %d times, want 2", len(calls))
	}
}

func TestSync_DeletedItemsNeverFetched(t *testing.T) {
	fetcher := catalogOf(
		content.Item{Name: "x.mp4", Category: content.Video, URL: "http://files.example.com/x.mp4"},
	)
	tr := &mockTransport{}
	s, trk, _, _ := newTestSyncer(t, fetcher, tr)
	defer s.Close()

	if err := trk.MarkDeleted(content.Video, "x.mp4"); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}

	sum, err := s.Sync(context.Background(), data.TriggerPeriodic)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if sum.SkippedDeleted != 1 || sum.Fetched != 0 {
		t.Fatalf("summary = %+v, want 1 skipped-deleted", sum)
	}
	if calls := tr.transferred(); len(calls) != 0 {
		t.Fatalf("transport must not be called for deleted items, got %v", calls)
	}
}

func TestPlan_DeletedTakesPrecedenceOverMissing(t *testing.T) {
	s, trk, _, _ := newTestSyncer(t, catalogOf(), &mockTransport{})
	defer s.Close()

	if err := trk.MarkDeleted(content.Video, "x.mp4"); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}

	decisions := s.Plan([]content.Item{
		{Name: "x.mp4", Category: content.Video, URL: "http://files.example.com/x.mp4"},
	})
	if len(decisions) != 1 || decisions[0].Action != content.ActionSkipDeleted {
		t.Fatalf("decisions = %+v, want skip-deleted", decisions)
	}
}

func TestSync_PartialBatchResilience(t *testing.T) {
	fetcher := catalogOf(
		content.Item{Name: "one.pdf", Category: content.Book, URL: "http://files.example.com/one.pdf"},
		content.Item{Name: "two.pdf", Category: content.Book, URL: "http://files.example.com/two.pdf"},
		content.Item{Name: "three.pdf", Category: content.Book, URL: "http://files.example.com/three.pdf"},
	)
	tr := &mockTransport{
		transferFunc: func(ctx context.Context, item content.Item, destDir string, progress content.ProgressFunc) (string, error) {
			if item.Name == "two.pdf" {
				return "", fmt.Errorf("%w: connection reset", content.ErrNetwork)
			}
			if err := os.WriteFile(filepath.Join(destDir, item.Name), []byte("data"), 0o644); err != nil {
				return "", err
			}
			return item.Name, nil
		},
	}
	s, _, _, contentDir := newTestSyncer(t, fetcher, tr)
	defer s.Close()

	sum, err := s.Sync(context.Background(), data.TriggerPeriodic)
	if err != nil {
		t.Fatalf("Sync() must not abort on a per-item failure: %v", err)
	}
	if sum.Fetched != 2 || sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 2 fetched 1 failed", sum)
	}
	for _, rel := range []string{"books/one.pdf", "books/three.pdf"} {
		if _, err := os.Stat(filepath.Join(contentDir, rel)); err != nil {
			t.Errorf("expected %s on disk: %v", rel, err)
		}
	}
}

func TestPlan_ExtractionMatchesAnyVideoExtension(t *testing.T) {
	s, _, _, contentDir := newTestSyncer(t, catalogOf(), &mockTransport{})
	defer s.Close()

	// The extractor saved v.webm although the manifest says v.mp4.
	videoDir := filepath.Join(contentDir, "videos")
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(videoDir, "v.webm"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	decisions := s.Plan([]content.Item{
		{Name: "v.mp4", Category: content.Video, URL: "https://www.youtube.com/watch?v=abc"},
	})
	if len(decisions) != 1 || decisions[0].Action != content.ActionSkipExists {
		t.Fatalf("decisions = %+v, want skip-exists via base-name match", decisions)
	}

	// A direct URL requires the exact filename.
	decisions = s.Plan([]content.Item{
		{Name: "v.mp4", Category: content.Video, URL: "http://files.example.com/v.mp4"},
	})
	if len(decisions) != 1 || decisions[0].Action != content.ActionFetch {
		t.Fatalf("decisions = %+v, want fetch for exact-name miss", decisions)
	}
}

func TestPlan_StaleHashTriggersRefetch(t *testing.T) {
	s, _, repo, contentDir := newTestSyncer(t, catalogOf(), &mockTransport{})
	defer s.Close()

	bookDir := filepath.Join(contentDir, "books")
	if err := os.MkdirAll(bookDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bookDir, "a.pdf"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordHash(content.Book, "a.pdf", "hash-old"); err != nil {
		t.Fatal(err)
	}

	item := content.Item{Name: "a.pdf", Category: content.Book, URL: "http://files.example.com/a.pdf", Hash: "hash-new"}
	decisions := s.Plan([]content.Item{item})
	if decisions[0].Action != content.ActionFetch || !decisions[0].Stale {
		t.Fatalf("decisions = %+v, want stale fetch", decisions)
	}

	// Matching hash: up to date.
	item.Hash = "hash-old"
	decisions = s.Plan([]content.Item{item})
	if decisions[0].Action != content.ActionSkipExists {
		t.Fatalf("decisions = %+v, want skip-exists when hash matches", decisions)
	}

	// No recorded hash (downloaded before tracking): never stale.
	item.Name = "b.pdf"
	item.Hash = "whatever"
	if err := os.WriteFile(filepath.Join(bookDir, "b.pdf"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	decisions = s.Plan([]content.Item{item})
	if decisions[0].Action != content.ActionSkipExists {
		t.Fatalf("decisions = %+v, want skip-exists without recorded hash", decisions)
	}
}

func TestSync_RecordsHashOnDownload(t *testing.T) {
	fetcher := catalogOf(
		content.Item{Name: "a.pdf", Category: content.Book, URL: "http://files.example.com/a.pdf", Hash: "abc123"},
	)
	s, _, repo, _ := newTestSyncer(t, fetcher, &mockTransport{})
	defer s.Close()

	if _, err := s.Sync(context.Background(), data.TriggerPeriodic); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	hash, ok, _ := repo.GetHash(content.Book, "a.pdf")
	if !ok || hash != "abc123" {
		t.Fatalf("recorded hash = %q ok=%v, want abc123", hash, ok)
	}
}

func TestSync_CatalogFailureAbortsPass(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFunc: func(context.Context, time.Duration) ([]content.Item, error) {
			return nil, fmt.Errorf("%w: boom", content.ErrNetwork)
		},
	}
	tr := &mockTransport{}
	s, _, repo, _ := newTestSyncer(t, fetcher, tr)
	defer s.Close()

	if _, err := s.Sync(context.Background(), data.TriggerPeriodic); err == nil {
		t.Fatal("Sync() should fail when the catalog fetch fails")
	}
	if calls := tr.transferred(); len(calls) != 0 {
		t.Fatalf("no transfers expected, got %v", calls)
	}

	rec := repo.lastCycle()
	if rec == nil || rec.Error == "" {
		t.Fatalf("cycle record = %+v, want recorded error", rec)
	}

	st := s.Status()
	if st.LastError == "" || !st.LastSuccess.IsZero() {
		t.Fatalf("status = %+v, want failed attempt with no success", st)
	}
}

func TestRedownloadDeleted(t *testing.T) {
	item := content.Item{Name: "x.mp4", Category: content.Video, URL: "http://files.example.com/x.mp4"}
	s, trk, _, _ := newTestSyncer(t, catalogOf(item), &mockTransport{})
	defer s.Close()

	if err := trk.MarkDeleted(content.Video, "x.mp4"); err != nil {
		t.Fatal(err)
	}

	var final float64
	err := s.RedownloadDeleted(context.Background(), content.Video, "x.mp4",
		func(_ string, frac float64) { final = frac })
	if err != nil {
		t.Fatalf("RedownloadDeleted() error = %v", err)
	}
	if final != 1.0 {
		t.Errorf("final progress = %v, want 1.0", final)
	}
	if trk.IsDeleted(content.Video, "x.mp4") {
		t.Error("restore must clear the deletion record")
	}
}

func TestRedownloadDeleted_NotInCatalog(t *testing.T) {
	s, trk, _, _ := newTestSyncer(t, catalogOf(), &mockTransport{})
	defer s.Close()

	if err := trk.MarkDeleted(content.Video, "gone.mp4"); err != nil {
		t.Fatal(err)
	}

	err := s.RedownloadDeleted(context.Background(), content.Video, "gone.mp4", nil)
	if err == nil {
		t.Fatal("expected error for item missing from catalog")
	}
	if !trk.IsDeleted(content.Video, "gone.mp4") {
		t.Error("deletion record must stay untouched when restore fails")
	}
}

func TestSync_PerItemTimeoutFollowsTrigger(t *testing.T) {
	item := content.Item{Name: "a.pdf", Category: content.Book, URL: "http://files.example.com/a.pdf"}

	deadlines := func(trig data.Trigger) time.Duration {
		var remaining time.Duration
		tr := &mockTransport{
			transferFunc: func(ctx context.Context, item content.Item, destDir string, progress content.ProgressFunc) (string, error) {
				deadline, ok := ctx.Deadline()
				if !ok {
					t.Fatal("transfer context must carry the pass deadline")
				}
				remaining = time.Until(deadline)
				return item.Name, os.WriteFile(filepath.Join(destDir, item.Name), []byte("data"), 0o644)
			},
		}
		s, _, _, _ := newTestSyncer(t, catalogOf(item), tr)
		defer s.Close()
		if _, err := s.Sync(context.Background(), trig); err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		return remaining
	}

	// newTestSyncer configures timeout=5s, quickTimeout=1s.
	if got := deadlines(data.TriggerOnDemand); got > time.Second {
		t.Errorf("on-demand download budget = %v, want at most the quick timeout", got)
	}
	if got := deadlines(data.TriggerPeriodic); got <= time.Second {
		t.Errorf("periodic download budget = %v, want the full timeout", got)
	}
}

func TestSync_StatusAfterSuccess(t *testing.T) {
	s, _, _, _ := newTestSyncer(t, catalogOf(), &mockTransport{})
	defer s.Close()

	before := time.Now()
	if _, err := s.Sync(context.Background(), data.TriggerOnDemand); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	st := s.Status()
	if st.LastError != "" {
		t.Errorf("LastError = %q, want empty", st.LastError)
	}
	if st.LastSuccess.Before(before) {
		t.Errorf("LastSuccess = %v, want after test start", st.LastSuccess)
	}
}

func TestList(t *testing.T) {
	s, _, _, contentDir := newTestSyncer(t, catalogOf(), &mockTransport{})
	defer s.Close()

	videoDir := filepath.Join(contentDir, "videos")
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.mp4", "b.webm", "notes.txt", "c.mp4.partial"} {
		if err := os.WriteFile(filepath.Join(videoDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := s.List(content.Video)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List() = %v, want the two video files", names)
	}

	// A missing category directory is an empty listing, not an error.
	names, err = s.List(content.Book)
	if err != nil || len(names) != 0 {
		t.Fatalf("List(book) = %v, %v; want empty", names, err)
	}
}
