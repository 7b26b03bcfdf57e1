package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent pipeline failures the caller is expected to
// distinguish. These are distinct from plain I/O errors.
var (
	// ErrIndexNotBuilt indicates search was attempted before a build or
	// load completed. Fatal until a build succeeds.
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrStaleIndex indicates the index manifest no longer matches the
	// on-disk source set. Surfaced as a warning, not fatal.
	ErrStaleIndex = errors.New("index is stale")

	// ErrModelMismatch indicates the configured embedder differs from the
	// one recorded in the index manifest. Searching would compare vectors
	// from different spaces, so this is fatal.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrInvalidConfig indicates chunking or retrieval parameters are
	// invalid. Fatal, rejected before any work begins.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// LoadError wraps a per-document ingestion failure. One unreadable source
// must not abort indexing of the rest of the corpus, so callers isolate
// these per file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
