package types

import "errors"

// Domain errors distinguishing "nothing matched" from real failure
var (
	// ErrNotFound signals an unknown repository or element id. Callers
	// map it to an empty result set, never a crash.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingBackend signals a backend timeout or outage. The
	// embedding layer recovers it locally (zero vector); it never
	// propagates past index or search operations.
	ErrEmbeddingBackend = errors.New("embedding backend failed")

	// ErrStore signals a persistence failure. Surfaced to the caller of
	// the specific operation that failed.
	ErrStore = errors.New("store failure")
)
