package embedder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/popoloni/codescope/internal/logging"
	"github.com/popoloni/codescope/internal/metrics"
	"github.com/popoloni/codescope/pkg/types"
)

// VectorCache is the persistent cache tier, keyed by content hash.
// The storage package provides the SQLite implementation.
type VectorCache interface {
	GetVector(ctx context.Context, hash string) ([]float32, bool, error)
	PutVector(ctx context.Context, hash string, vector []float32) error
}

// Generator wraps an Embedder with content-addressed caching and the
// degrade-to-zero-vector failure policy used during indexing.
type Generator struct {
	embedder Embedder
	memory   *memoryCache
	store    VectorCache
	logger   logging.Logger
	metrics  *metrics.Metrics
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithVectorCache attaches a persistent cache tier.
func WithVectorCache(store VectorCache) GeneratorOption {
	return func(g *Generator) { g.store = store }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// WithCacheSize overrides the in-memory LRU capacity.
func WithCacheSize(n int) GeneratorOption {
	return func(g *Generator) { g.memory = newMemoryCache(n) }
}

// NewGenerator creates a Generator around the given provider.
func NewGenerator(e Embedder, logger logging.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = logging.Discard()
	}
	g := &Generator{
		embedder: e,
		memory:   newMemoryCache(0),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimension returns the vector dimension of the underlying provider.
func (g *Generator) Dimension() int {
	return g.embedder.Dimension()
}

// Provider returns the underlying provider name.
func (g *Generator) Provider() string {
	return g.embedder.Provider()
}

// Close releases the underlying provider.
func (g *Generator) Close() error {
	return g.embedder.Close()
}

// Embed returns the embedding for text, consulting the memory tier,
// then the persistent tier, then the backend. Backend failure is not
// propagated: the caller gets a zero vector of the provider dimension
// and the condition is logged. Empty text embeds to a zero vector
// without touching the backend.
func (g *Generator) Embed(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return make([]float32, g.embedder.Dimension())
	}

	hash := ComputeHash(text)
	if vec, ok := g.cached(ctx, hash); ok {
		return vec
	}

	g.metrics.RecordEmbeddingRequest(g.embedder.Provider())
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		g.metrics.RecordEmbeddingFailure()
		g.logger.WarnContext(ctx, "embedding backend failed, using zero vector",
			"provider", g.embedder.Provider(), "error", err)
		return make([]float32, g.embedder.Dimension())
	}

	g.remember(ctx, hash, vec)
	return vec
}

// EmbedBatch embeds texts in order, reusing cached vectors and sending
// only the misses to the backend in a single call. Failed backend
// calls yield zero vectors for every miss.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make([]float32, g.embedder.Dimension())
			continue
		}
		hash := ComputeHash(text)
		if vec, ok := g.cached(ctx, hash); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out
	}

	g.metrics.RecordEmbeddingRequest(g.embedder.Provider())
	vecs, err := g.embedder.EmbedBatch(ctx, missTexts)
	if err != nil || len(vecs) != len(missTexts) {
		g.metrics.RecordEmbeddingFailure()
		g.logger.WarnContext(ctx, "embedding batch failed, using zero vectors",
			"provider", g.embedder.Provider(), "misses", len(missTexts), "error", err)
		for _, i := range missIdx {
			out[i] = make([]float32, g.embedder.Dimension())
		}
		return out
	}

	for k, i := range missIdx {
		out[i] = vecs[k]
		g.remember(ctx, ComputeHash(missTexts[k]), vecs[k])
	}
	return out
}

// EmbedElement renders an element and embeds the rendering.
func (g *Generator) EmbedElement(ctx context.Context, e *types.CodeElement) []float32 {
	return g.Embed(ctx, RenderElement(e))
}

// EmbedFile renders a parsed file summary and embeds the rendering.
func (g *Generator) EmbedFile(ctx context.Context, f *types.ParsedFile) []float32 {
	return g.Embed(ctx, RenderFile(f))
}

// EmbedQuery embeds a search query.
func (g *Generator) EmbedQuery(ctx context.Context, query string) []float32 {
	return g.Embed(ctx, query)
}

// cached consults both tiers. A persistent hit with a stale dimension
// is ignored so a provider switch regenerates instead of mixing spaces.
func (g *Generator) cached(ctx context.Context, hash string) ([]float32, bool) {
	if vec, ok := g.memory.get(hash); ok {
		if len(vec) == g.embedder.Dimension() {
			g.metrics.RecordEmbeddingCacheHit("memory")
			return vec, true
		}
	}
	if g.store == nil {
		return nil, false
	}
	vec, ok, err := g.store.GetVector(ctx, hash)
	if err != nil {
		g.logger.WarnContext(ctx, "vector cache read failed", "error", err)
		return nil, false
	}
	if !ok || len(vec) != g.embedder.Dimension() {
		return nil, false
	}
	g.metrics.RecordEmbeddingCacheHit("store")
	g.memory.set(hash, vec)
	return vec, true
}

func (g *Generator) remember(ctx context.Context, hash string, vec []float32) {
	g.memory.set(hash, vec)
	if g.store == nil {
		return
	}
	if err := g.store.PutVector(ctx, hash, vec); err != nil {
		g.logger.WarnContext(ctx, "vector cache write failed", "error", err)
	}
}

// RenderElement produces the canonical text embedded for an element:
// kind, name, description, categories and snippet. Two elements with
// identical renderings share one cache entry.
func RenderElement(e *types.CodeElement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Kind, e.Name)
	if e.Description != "" {
		b.WriteString("\n")
		b.WriteString(e.Description)
	}
	if len(e.Categories) > 0 {
		b.WriteString("\ncategories: ")
		b.WriteString(strings.Join(e.Categories, ", "))
	}
	if e.Snippet != "" {
		b.WriteString("\n")
		b.WriteString(e.Snippet)
	}
	return b.String()
}

// RenderFile produces the canonical text embedded for a file summary:
// path, language and element counts by kind.
func RenderFile(f *types.ParsedFile) string {
	counts := make(map[types.ElementKind]int)
	for _, e := range f.Elements {
		counts[e.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var b strings.Builder
	fmt.Fprintf(&b, "file %s\nlanguage: %s", f.FilePath, f.Language)
	for _, kind := range kinds {
		fmt.Fprintf(&b, "\n%s: %d", kind, counts[types.ElementKind(kind)])
	}
	return b.String()
}
