package imagecache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coderfong/moq-pools-sub002/helpers"
)

// Mirror caches remote images on local disk: "mirror this remote URL, return a
// local path". Files are content-addressed by URL hash so repeated mirroring
// is a no-op.
type Mirror struct {
	dir string
}

// NewMirror creates a mirror rooted at dir, creating it if needed.
func NewMirror(dir string) (*Mirror, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image cache dir: %w", err)
	}
	return &Mirror{dir: dir}, nil
}

// localName derives a stable filename from the remote URL, preserving a
// recognizable image extension when one is present.
func localName(remoteURL string) string {
	sum := sha1.Sum([]byte(remoteURL))
	ext := strings.ToLower(filepath.Ext(remoteURL))
	if i := strings.IndexAny(ext, "?&#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
	default:
		ext = ".jpg"
	}
	return hex.EncodeToString(sum[:]) + ext
}

// Fetch downloads the remote image if not already mirrored and returns the
// local path.
func (m *Mirror) Fetch(ctx context.Context, remoteURL string) (string, error) {
	path := filepath.Join(m.dir, localName(remoteURL))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	data, err := helpers.FetchSimply(ctx, remoteURL)
	if err != nil {
		return "", fmt.Errorf("failed to mirror image %s: %w", remoteURL, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image body for %s", remoteURL)
	}

	// Write through a temp file so readers never observe a partial image.
	tmp, err := os.CreateTemp(m.dir, "mirror-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return path, nil
}
