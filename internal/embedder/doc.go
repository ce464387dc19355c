// Package embedder turns code elements, files and queries into vector
// embeddings for semantic search.
//
// The Embedder interface abstracts over providers. Two hosted backends
// (OpenAI and Jina) share an HTTP implementation with retry and
// exponential backoff; a local provider produces deterministic vectors
// without network access and is the default when no API key is set.
//
// Generator sits on top of a provider and adds the caching and
// degradation policy used during indexing:
//
//   - a content-addressed two-tier cache, an in-memory LRU in front of
//     a persistent VectorCache (backed by SQLite), keyed by the SHA-256
//     hash of the rendered text
//   - zero-vector fallback when the backend fails after retries, so a
//     flaky embedding API degrades search quality instead of failing
//     an entire indexing run
//
// Vectors from the same provider always have the same dimension.
// Cached vectors whose dimension no longer matches the active provider
// are ignored and regenerated.
package embedder
