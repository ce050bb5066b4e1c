package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Progress is the per-leaf kept-count map that makes a long batch run
// resumable. It is read once at start and rewritten after every accepted
// batch, so an interrupted run loses at most one in-flight batch. Deleting
// the file restarts every leaf from zero.
type Progress struct {
	path   string
	counts map[string]int
}

// LoadProgress reads the resume file. A missing file yields empty progress;
// a corrupt file is an error so an operator notices instead of silently
// re-ingesting everything.
func LoadProgress(path string) (*Progress, error) {
	p := &Progress{path: path, counts: make(map[string]int)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read resume file: %w", err)
	}
	if err := json.Unmarshal(raw, &p.counts); err != nil {
		return nil, fmt.Errorf("parse resume file %s: %w", path, err)
	}
	return p, nil
}

// Count returns the kept count for a leaf.
func (p *Progress) Count(leafKey string) int {
	return p.counts[leafKey]
}

// Add increments a leaf's kept count. Counts only grow.
func (p *Progress) Add(leafKey string, n int) {
	if n <= 0 {
		return
	}
	p.counts[leafKey] += n
}

// Save rewrites the resume file atomically.
func (p *Progress) Save() error {
	raw, err := json.MarshalIndent(p.counts, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}
