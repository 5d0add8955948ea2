package services

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mebx/contentsync/pkg/content"
	"github.com/mebx/contentsync/pkg/data"
)

// connectivityProbe is HEAD-checked before a periodic pass; offline
// kiosks skip the cycle instead of timing out on every item.
const connectivityProbe = "https://dns.google"

// Coordinator arbitrates between the periodic background pass and the
// on-demand checks fired from menu navigation. At most one pass runs at
// a time: the periodic tick and on-demand triggers skip when busy, a
// manual restore waits its turn.
type Coordinator struct {
	syncer   *Syncer
	interval time.Duration
	logger   *slog.Logger

	// probeURL is overridable in tests.
	probeURL    string
	probeClient *http.Client

	mu sync.Mutex // serializes reconciliation passes
}

// NewCoordinator creates a Coordinator driving the given Syncer.
func NewCoordinator(syncer *Syncer, interval time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		syncer:      syncer,
		interval:    interval,
		logger:      logger,
		probeURL:    connectivityProbe,
		probeClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Serve implements suture.Service. It runs one full pass immediately,
// then one per interval, until the context is canceled.
func (c *Coordinator) Serve(ctx context.Context) error {
	c.runPeriodic(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.runPeriodic(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *Coordinator) String() string {
	return "content-sync"
}

func (c *Coordinator) runPeriodic(ctx context.Context) {
	if !c.mu.TryLock() {
		c.logger.Debug("sync already in progress, skipping periodic pass")
		return
	}
	defer c.mu.Unlock()

	if !c.online(ctx) {
		c.logger.Info("no internet connection, skipping download")
		return
	}
	if _, err := c.syncer.Sync(ctx, data.TriggerPeriodic); err != nil {
		c.logger.Error("periodic sync failed", "error", err)
	}
}

// TriggerSync fires an asynchronous quick pass, as menus do when they
// open. Returns false without doing anything when a pass is already in
// flight; the caller simply tries again on the next trigger.
func (c *Coordinator) TriggerSync(ctx context.Context) bool {
	if !c.mu.TryLock() {
		return false
	}
	go func() {
		defer c.mu.Unlock()
		if _, err := c.syncer.Sync(ctx, data.TriggerOnDemand); err != nil {
			c.logger.Debug("quick sync failed", "error", err)
		}
	}()
	return true
}

// RedownloadDeleted restores a single user-deleted item. Unlike the
// triggers it waits for any in-flight pass rather than giving up, since
// the user explicitly asked for it.
func (c *Coordinator) RedownloadDeleted(ctx context.Context, cat content.Category, filename string, progress content.ProgressFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncer.RedownloadDeleted(ctx, cat, filename, progress)
}

// online HEAD-checks a well-known endpoint.
func (c *Coordinator) online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
