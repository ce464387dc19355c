// Package storage persists repositories, files, code elements and
// dependency edges in SQLite and serves candidate sets for search.
//
// # Builds
//
// Two SQLite drivers are supported via build tags:
//
//	CGO_ENABLED=0 go build -tags purego ./...   modernc.org/sqlite (default)
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./... mattn/go-sqlite3
//
// The pure Go driver needs no C toolchain and is the default. The cgo
// driver is faster for large indexes.
//
// # Write model
//
// The unit of atomicity is one file: IndexFile deletes the file's
// previous rows and inserts the new ones inside a single transaction,
// so a crash mid-index never leaves a file half-written. Dependency
// edges are replaced wholesale per repository after graph analysis.
//
// # Embedding cache
//
// The embedding_cache table is the persistent tier of the embedding
// cache, keyed by SHA-256 content hash. Entries whose dimension does
// not match the active provider are ignored by readers.
package storage
