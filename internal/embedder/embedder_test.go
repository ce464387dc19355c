package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popoloni/codescope/internal/logging"
	"github.com/popoloni/codescope/pkg/types"
)

// fakeEmbedder counts backend calls and can be made to fail.
type fakeEmbedder struct {
	dimension int
	calls     int
	fail      bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dimension)
		for j := range vec {
			vec[j] = float32(len(text)+j) / 100
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int   { return f.dimension }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake-model" }
func (f *fakeEmbedder) Close() error     { return nil }

// mapVectorCache is an in-memory stand-in for the SQLite tier.
type mapVectorCache struct {
	mu      sync.Mutex
	vectors map[string][]float32
}

func newMapVectorCache() *mapVectorCache {
	return &mapVectorCache{vectors: make(map[string][]float32)}
}

func (m *mapVectorCache) GetVector(_ context.Context, hash string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vec, ok := m.vectors[hash]
	return vec, ok, nil
}

func (m *mapVectorCache) PutVector(_ context.Context, hash string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[hash] = vector
	return nil
}

func TestComputeHashDeterministic(t *testing.T) {
	h1 := ComputeHash("func main() {}")
	h2 := ComputeHash("func main() {}")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, ComputeHash("func main() {} "))
}

func TestSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	c := []float32{1, 1, 0}
	zero := []float32{0, 0, 0}

	assert.InDelta(t, 0.0, Similarity(a, b), 1e-9)
	assert.InDelta(t, 1.0, Similarity(a, a), 1e-9)
	assert.InDelta(t, Similarity(a, c), Similarity(c, a), 1e-9)
	assert.Equal(t, 0.0, Similarity(zero, a))
	assert.Equal(t, 0.0, Similarity(a, zero))
	assert.Equal(t, 0.0, Similarity(a, []float32{1, 0}))
	assert.Equal(t, 0.0, Similarity(nil, nil))

	neg := []float32{-1, 0, 0}
	assert.InDelta(t, -1.0, Similarity(a, neg), 1e-9)
}

func TestLocalProviderDeterministic(t *testing.T) {
	p, err := NewLocalProvider(256)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	v1, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 256)

	v3, err := p.Embed(ctx, "goodbye world")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestLocalProviderRejectsEmpty(t *testing.T) {
	p, err := NewLocalProvider(64)
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = p.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewLocalProvider(0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGeneratorCachesByContent(t *testing.T) {
	fake := &fakeEmbedder{dimension: 8}
	g := NewGenerator(fake, logging.Discard())
	ctx := context.Background()

	v1 := g.Embed(ctx, "select * from users")
	v2 := g.Embed(ctx, "select * from users")

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, fake.calls, "second call must be served from cache")
	assert.Equal(t, 1, g.memory.len(), "identical content shares one entry")
}

func TestGeneratorMemoryCacheBounded(t *testing.T) {
	fake := &fakeEmbedder{dimension: 4}
	g := NewGenerator(fake, logging.Discard(), WithCacheSize(2))
	ctx := context.Background()

	g.Embed(ctx, "one")
	g.Embed(ctx, "two")
	g.Embed(ctx, "three")

	assert.Equal(t, 2, g.memory.len(), "LRU evicts beyond capacity")
	assert.Equal(t, 3, fake.calls)

	// The oldest entry was evicted; re-embedding it hits the backend.
	g.Embed(ctx, "one")
	assert.Equal(t, 4, fake.calls)
}

func TestGeneratorDegradesToZeroVector(t *testing.T) {
	fake := &fakeEmbedder{dimension: 4, fail: true}
	g := NewGenerator(fake, logging.Discard())

	vec := g.Embed(context.Background(), "anything")
	assert.Equal(t, []float32{0, 0, 0, 0}, vec)

	// Zero vectors rank last through the zero-norm similarity rule.
	assert.Equal(t, 0.0, Similarity(vec, []float32{1, 2, 3, 4}))
}

func TestGeneratorEmptyTextSkipsBackend(t *testing.T) {
	fake := &fakeEmbedder{dimension: 4}
	g := NewGenerator(fake, logging.Discard())

	vec := g.Embed(context.Background(), "   ")
	assert.Equal(t, []float32{0, 0, 0, 0}, vec)
	assert.Equal(t, 0, fake.calls)
}

func TestGeneratorPersistentTier(t *testing.T) {
	store := newMapVectorCache()
	ctx := context.Background()

	first := &fakeEmbedder{dimension: 8}
	g1 := NewGenerator(first, logging.Discard(), WithVectorCache(store))
	vec := g1.Embed(ctx, "def handler(req):")
	require.Equal(t, 1, first.calls)

	// A fresh generator with an empty memory tier hits the store.
	second := &fakeEmbedder{dimension: 8}
	g2 := NewGenerator(second, logging.Discard(), WithVectorCache(store))
	got := g2.Embed(ctx, "def handler(req):")

	assert.Equal(t, vec, got)
	assert.Equal(t, 0, second.calls)
}

func TestGeneratorRejectsStaleDimension(t *testing.T) {
	store := newMapVectorCache()
	ctx := context.Background()

	g1 := NewGenerator(&fakeEmbedder{dimension: 8}, logging.Discard(), WithVectorCache(store))
	g1.Embed(ctx, "some code")

	// Same store, different provider dimension: cached vector is stale.
	wider := &fakeEmbedder{dimension: 16}
	g2 := NewGenerator(wider, logging.Discard(), WithVectorCache(store))
	got := g2.Embed(ctx, "some code")

	assert.Len(t, got, 16)
	assert.Equal(t, 1, wider.calls, "stale-dimension entry must be regenerated")
}

func TestGeneratorBatchPartialCache(t *testing.T) {
	fake := &fakeEmbedder{dimension: 8}
	g := NewGenerator(fake, logging.Discard())
	ctx := context.Background()

	warm := g.Embed(ctx, "cached text")
	require.Equal(t, 1, fake.calls)

	out := g.EmbedBatch(ctx, []string{"cached text", "new text", ""})
	require.Len(t, out, 3)
	assert.Equal(t, warm, out[0])
	assert.Len(t, out[1], 8)
	assert.Equal(t, make([]float32, 8), out[2])
	assert.Equal(t, 2, fake.calls, "only the miss goes to the backend")
}

func TestRenderElement(t *testing.T) {
	e := &types.CodeElement{
		Name:        "UserRepository",
		Kind:        types.KindClass,
		Description: "Persists users.",
		Categories:  []string{"data_access", "model"},
		Snippet:     "class UserRepository:",
	}

	text := RenderElement(e)
	assert.Contains(t, text, "class UserRepository")
	assert.Contains(t, text, "Persists users.")
	assert.Contains(t, text, "data_access, model")
	assert.Contains(t, text, "class UserRepository:")

	bare := RenderElement(&types.CodeElement{Name: "x", Kind: types.KindVariable})
	assert.Equal(t, "variable x", bare)
}

func TestRenderFile(t *testing.T) {
	f := &types.ParsedFile{
		FilePath: "app/models.py",
		Language: "python",
		Elements: []types.CodeElement{
			{Name: "User", Kind: types.KindClass},
			{Name: "Order", Kind: types.KindClass},
			{Name: "migrate", Kind: types.KindFunction},
		},
	}

	text := RenderFile(f)
	assert.Contains(t, text, "file app/models.py")
	assert.Contains(t, text, "language: python")
	assert.Contains(t, text, "class: 2")
	assert.Contains(t, text, "function: 1")
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: 1, MaxDelay: 10, Multiplier: 2}

	attempts := 0
	got, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)

	attempts = 0
	_, err = retryWithBackoff(context.Background(), cfg, func() (int, error) {
		attempts++
		return 0, errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = retryWithBackoff(ctx, cfg, func() (int, error) {
		return 0, errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
