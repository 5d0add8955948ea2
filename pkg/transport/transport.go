// Package transport performs the byte transfer for a single catalog
// item, either as a streamed HTTP download or through an external
// extraction backend for known video-hosting URLs.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mebx/contentsync/pkg/content"
)

// Kind selects the transfer strategy for an item URL.
type Kind int

const (
	KindGenericHTTP Kind = iota
	KindExtraction
)

func (k Kind) String() string {
	if k == KindExtraction {
		return "extraction"
	}
	return "http"
}

// extractionHosts are the video-hosting domains served by the
// extraction backend instead of a direct GET.
var extractionHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"dailymotion.com",
}

// Classify picks the transfer strategy for a URL. Unparseable URLs fall
// back to the generic path, which will fail with a proper error.
func Classify(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return KindGenericHTTP
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, h := range extractionHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return KindExtraction
		}
	}
	return KindGenericHTTP
}

const (
	chunkSize      = 32 * 1024
	partialSuffix  = ".partial"
	maxRetries     = 1
	retryBackoff   = 2 * time.Second
	defaultUA      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	requestsPerSec = 2
)

// Transport downloads single items. It holds no state across items
// beyond the shared HTTP client and rate limiter.
type Transport struct {
	client        *http.Client
	limiter       *rate.Limiter
	maxResolution int
	logger        *slog.Logger
}

// New creates a Transport. timeout bounds each HTTP request;
// maxResolution caps extraction downloads (720 by default).
func New(timeout time.Duration, maxResolution int, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if maxResolution <= 0 {
		maxResolution = 720
	}
	return &Transport{
		client:        &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		maxResolution: maxResolution,
		logger:        logger,
	}
}

// Transfer downloads item into destDir and returns the final filename.
// For extraction URLs the extractor chooses the extension, so the
// returned name may differ from item.Name. Progress events carry the
// item's manifest name.
func (t *Transport) Transfer(ctx context.Context, item content.Item, destDir string, progress content.ProgressFunc) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", content.ErrNetwork, err)
	}

	switch Classify(item.URL) {
	case KindExtraction:
		return t.extract(ctx, item, destDir)
	default:
		return item.Name, t.download(ctx, item, filepath.Join(destDir, item.Name), progress)
	}
}

// download streams the item body to <dest>.partial and renames it over
// dest on success, so an interrupted transfer never masquerades as a
// complete file.
func (t *Transport) download(ctx context.Context, item content.Item, dest string, progress content.ProgressFunc) error {
	// A retry restarts the stream from byte zero. Emitted fractions are
	// clamped to the high-water mark so one download never reports a
	// decreasing sequence to its sink.
	if progress != nil {
		inner := progress
		var highWater float64
		progress = func(name string, frac float64) {
			if frac < highWater {
				return
			}
			highWater = frac
			inner(name, frac)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return content.ClassifyRequestError(ctx.Err())
			}
			t.logger.Info("retrying download", "file", item.Name, "attempt", attempt+1)
		}

		lastErr = t.downloadOnce(ctx, item, dest, progress)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (t *Transport) downloadOnce(ctx context.Context, item content.Item, dest string, progress content.ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return fmt.Errorf("building request for %q: %w", item.Name, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return content.ClassifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: bad status %s for %q", content.ErrNetwork, resp.Status, item.Name)
	}

	partial := dest + partialSuffix
	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}

	total := resp.ContentLength
	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				os.Remove(partial)
				return fmt.Errorf("%w: %v", content.ErrFilesystem, werr)
			}
			written += int64(n)
			if progress != nil && total > 0 {
				frac := float64(written) / float64(total)
				if frac > 1.0 {
					frac = 1.0
				}
				progress(item.Name, frac)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			os.Remove(partial)
			return content.ClassifyRequestError(rerr)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}
	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return fmt.Errorf("%w: %v", content.ErrFilesystem, err)
	}

	// Final event even when the server did not announce a length.
	if progress != nil {
		progress(item.Name, 1.0)
	}
	return nil
}

// SweepPartials removes leftover temp files under each category
// directory: our own .partial files and the .part files the extraction
// backend writes. Any such file is evidence of an interrupted transfer.
func SweepPartials(contentDir string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, cat := range content.Categories() {
		dir := filepath.Join(contentDir, cat.Dir())
		for _, pattern := range []string{"*" + partialSuffix, "*.part"} {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			for _, path := range matches {
				if err := os.Remove(path); err == nil {
					logger.Warn("discarded interrupted download", "file", path)
				}
			}
		}
	}
}
