package content

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Error taxonomy for the sync subsystem. Per-item errors wrap one of
// these so callers can branch without string matching.
var (
	// ErrNetwork covers unreachable hosts, DNS failures and reset
	// connections.
	ErrNetwork = errors.New("network error")

	// ErrTimeout marks a request that exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrInvalidResponse marks a catalog response that is not JSON or
	// does not match the expected schema.
	ErrInvalidResponse = errors.New("invalid catalog response")

	// ErrFilesystem covers destination write failures.
	ErrFilesystem = errors.New("filesystem error")

	// ErrPlayerUnavailable means no extraction backend is usable for an
	// extraction-based download.
	ErrPlayerUnavailable = errors.New("extraction backend unavailable")

	// ErrNotFound is returned by manual restore when the requested item
	// is absent from the current remote catalog.
	ErrNotFound = errors.New("item not found in catalog")
)

// ClassifyRequestError maps an http.Client failure onto the taxonomy.
// Timeouts are distinguished so a slow remote is not reported as
// unreachable.
func ClassifyRequestError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
