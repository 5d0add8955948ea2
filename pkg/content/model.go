package content

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Category is the content type a file belongs to. Each category maps to
// its own directory under the content root and its own deletion list.
type Category string

const (
	Book  Category = "book"
	Video Category = "video"
)

// ParseCategory maps a manifest "type" field to a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "book":
		return Book, nil
	case "video":
		return Video, nil
	default:
		return "", fmt.Errorf("unknown content type %q", s)
	}
}

// Dir returns the category's directory name under the content root.
func (c Category) Dir() string {
	return string(c) + "s"
}

// Categories lists all known categories in a stable order.
func Categories() []Category {
	return []Category{Book, Video}
}

// Item is a single entry of the remote catalog. Items live for one sync
// cycle; nothing about them is persisted except the hash, which the
// repository records after a successful download.
type Item struct {
	Name     string
	Category Category
	URL      string
	Hash     string // optional, empty when the manifest omits it
}

// Validate rejects items whose name cannot be used as a filesystem leaf.
func (i Item) Validate() error {
	if i.Name == "" {
		return errors.New("item has no name")
	}
	if i.Name != filepath.Base(i.Name) || i.Name == "." || i.Name == ".." {
		return fmt.Errorf("item name %q is not a valid file name", i.Name)
	}
	if i.URL == "" {
		return fmt.Errorf("item %q has no url", i.Name)
	}
	return nil
}

// Action is the reconciliation decision for one catalog item.
type Action int

const (
	ActionFetch Action = iota
	ActionSkipExists
	ActionSkipDeleted
)

func (a Action) String() string {
	switch a {
	case ActionFetch:
		return "fetch"
	case ActionSkipExists:
		return "skip-exists"
	case ActionSkipDeleted:
		return "skip-deleted"
	default:
		return "unknown"
	}
}

// Decision pairs a catalog item with the action chosen for it.
type Decision struct {
	Item   Item
	Action Action
	// Stale is set on ActionFetch when the local file exists but its
	// recorded manifest hash no longer matches.
	Stale bool
}

// DownloadProgress reports the state of one in-flight transfer.
// Fraction is in [0.0, 1.0] and non-decreasing within one download; a
// terminal event carries either 1.0 or a non-nil Err.
type DownloadProgress struct {
	Filename string
	Fraction float64
	Err      error
}

// ProgressFunc receives incremental progress for a single file. It may
// be called from the goroutine performing the transfer.
type ProgressFunc func(filename string, fraction float64)

// VideoExtensions is the accepted extension set used when matching
// extraction-sourced items, whose final extension is chosen by the
// extractor rather than the manifest.
var VideoExtensions = []string{".mp4", ".webm", ".mkv", ".avi", ".mov"}

// BookExtensions filters the local book listing.
var BookExtensions = []string{".pdf", ".epub", ".txt"}
