package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lrstanley/go-ytdlp"

	"github.com/mebx/contentsync/pkg/content"
)

var (
	installOnce sync.Once
	installErr  error
)

// ensureExtractor resolves the yt-dlp binary once per process,
// downloading it when missing.
func ensureExtractor(ctx context.Context) error {
	installOnce.Do(func() {
		_, installErr = ytdlp.Install(ctx, nil)
	})
	return installErr
}

// extract downloads a video-hosting URL through yt-dlp. Resolution is
// capped to bound kiosk storage and bandwidth, and a browser identity
// plus inter-request sleep keep the remote host from blocking us. The
// extractor picks the container, so the returned filename's extension
// may differ from the manifest name.
func (t *Transport) extract(ctx context.Context, item content.Item, destDir string) (string, error) {
	if err := ensureExtractor(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", content.ErrPlayerUnavailable, err)
	}

	base := strings.TrimSuffix(item.Name, filepath.Ext(item.Name))
	outTemplate := filepath.Join(destDir, base+".%(ext)s")

	dl := ytdlp.New().
		Format(fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", t.maxResolution, t.maxResolution)).
		Output(outTemplate).
		NoPlaylist().
		RestrictFilenames().
		UserAgent(defaultUA).
		Referer(item.URL).
		SleepInterval(1)

	result, err := dl.Run(ctx, item.URL)
	if err != nil {
		return "", fmt.Errorf("%w: extraction of %q: %v", content.ErrNetwork, item.Name, err)
	}

	if name, ok := extractedFilename(result); ok {
		return name, nil
	}

	// Fall back to scanning for the base name; yt-dlp does not always
	// report the merged output path.
	for _, ext := range content.VideoExtensions {
		candidate := filepath.Join(destDir, base+ext)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Base(candidate), nil
		}
	}
	return "", fmt.Errorf("%w: extraction of %q produced no output file", content.ErrFilesystem, item.Name)
}

func extractedFilename(result *ytdlp.Result) (string, bool) {
	if result == nil {
		return "", false
	}
	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		return "", false
	}
	if info[0].Filename == nil || *info[0].Filename == "" {
		return "", false
	}
	return filepath.Base(*info[0].Filename), true
}
