package etl

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ── Partition readers ──────────────────────────────────────
// A PartitionReader parses one input file format.
// Implementations live in etl/sources/, one file per format.

// PartitionReader is the interface every input format must implement.
type PartitionReader interface {
	// Format is the short name of the format, e.g. "csv".
	Format() string

	// Extensions lists the lower-case file extensions handled, with the dot.
	Extensions() []string

	// Read parses the whole file.
	Read(ctx context.Context, path string) (*Partition, error)
}

// ── Reader Registry ────────────────────────────────────────
// Compile-time registration via init() in each reader file.

var (
	registryMu sync.RWMutex
	registry   = map[string]PartitionReader{} // extension → reader
)

// RegisterReader registers a reader for each of its extensions.
// Called from init() in each reader implementation file.
func RegisterReader(r PartitionReader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, ext := range r.Extensions() {
		registry[strings.ToLower(ext)] = r
	}
}

// ReaderFor returns the reader registered for path's extension.
func ReaderFor(path string) (PartitionReader, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ext := strings.ToLower(filepath.Ext(path))
	r, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("no partition reader for %q files", ext)
	}
	return r, nil
}

// ListFormats returns the registered format names, sorted.
func ListFormats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	seen := map[string]bool{}
	var formats []string
	for _, r := range registry {
		if !seen[r.Format()] {
			seen[r.Format()] = true
			formats = append(formats, r.Format())
		}
	}
	sort.Strings(formats)
	return formats
}
