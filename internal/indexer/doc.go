// Package indexer orchestrates the indexing pipeline: discover files,
// parse them concurrently, analyze the dependency graph, generate
// embeddings and persist everything.
//
// A single Indexer serializes indexing runs with a non-blocking lock;
// a second caller gets an error instead of queueing behind a long run.
// Per-file parse failures are isolated and reported in the result,
// never aborting the run, and embedding backend failures degrade to
// zero vectors.
package indexer
