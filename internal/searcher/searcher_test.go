package searcher

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popoloni/codescope/internal/embedder"
	"github.com/popoloni/codescope/internal/logging"
	"github.com/popoloni/codescope/internal/storage"
	"github.com/popoloni/codescope/pkg/types"
)

// stubEmbedder returns fixed vectors per text so tests control the
// similarity between queries and stored elements.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := s.Embed(ctx, text)
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int   { return 2 }
func (s *stubEmbedder) Provider() string { return "stub" }
func (s *stubEmbedder) Model() string    { return "stub" }
func (s *stubEmbedder) Close() error     { return nil }

// atCosine returns a unit vector whose cosine similarity with (1,0)
// is exactly c.
func atCosine(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func newTestSearcher(t *testing.T) (*Searcher, *storage.SQLiteStore, *types.Repository) {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo := types.NewRepository("app", "/src/app")
	require.NoError(t, store.CreateRepository(context.Background(), repo))

	gen := embedder.NewGenerator(&stubEmbedder{}, logging.Discard())
	return New(store, gen, logging.Discard(), nil), store, repo
}

func indexElement(t *testing.T, store *storage.SQLiteStore, repo *types.Repository, name string, kind types.ElementKind, vec []float32) types.CodeElement {
	t.Helper()
	e := types.CodeElement{
		Name:         name,
		Kind:         kind,
		RepositoryID: repo.ID,
		FilePath:     name + ".py",
		StartLine:    1,
		EndLine:      3,
		Embedding:    vec,
	}
	e.SetFullName()
	file := &types.ParsedFile{FilePath: e.FilePath, Language: "python"}
	require.NoError(t, store.IndexFile(context.Background(), repo.ID, file, []types.CodeElement{e}))
	return e
}

func TestRankKindWeights(t *testing.T) {
	variable := &types.CodeElement{Name: "x", Kind: types.KindVariable}
	class := &types.CodeElement{Name: "Y", Kind: types.KindClass}

	// A slightly less similar class outranks a more similar variable.
	assert.InDelta(t, 0.72, Rank(0.9, variable, nil), 1e-9)
	assert.InDelta(t, 1.02, Rank(0.85, class, nil), 1e-9)

	method := &types.CodeElement{Name: "m", Kind: types.KindMethod}
	assert.InDelta(t, 0.5, Rank(0.5, method, nil), 1e-9)

	module := &types.CodeElement{Name: "pkg", Kind: types.KindModule}
	assert.InDelta(t, 0.5, Rank(0.5, module, nil), 1e-9)
}

func TestRankNameBoost(t *testing.T) {
	e := &types.CodeElement{Name: "parse_user_input", Kind: types.KindFunction}

	plain := Rank(0.5, e, nil)
	boosted := Rank(0.5, e, []string{"user", "input"})
	assert.InDelta(t, plain*1.6, boosted, 1e-9)

	miss := Rank(0.5, e, []string{"billing"})
	assert.InDelta(t, plain, miss, 1e-9)
}

func TestRankComplexityPenalty(t *testing.T) {
	mild := 2.0
	severe := 9.0
	e := &types.CodeElement{Name: "f", Kind: types.KindMethod}

	e.Complexity = &mild
	assert.InDelta(t, 0.8, Rank(1.0, e, nil), 1e-9)

	// The penalty never drops a score below half.
	e.Complexity = &severe
	assert.InDelta(t, 0.5, Rank(1.0, e, nil), 1e-9)

	e.Complexity = nil
	assert.InDelta(t, 1.0, Rank(1.0, e, nil), 1e-9)
}

func TestSearchOrdersByRank(t *testing.T) {
	s, store, repo := newTestSearcher(t)
	ctx := context.Background()

	indexElement(t, store, repo, "counter", types.KindVariable, atCosine(0.9))
	indexElement(t, store, repo, "Ledger", types.KindClass, atCosine(0.85))

	results, err := s.Search(ctx, "ledger accounting", types.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Ledger", results[0].Element.Name)
	assert.Equal(t, "counter", results[1].Element.Name)
	assert.Greater(t, results[0].RankScore, results[1].RankScore)
	assert.InDelta(t, 0.85, results[0].Similarity, 1e-6)
	assert.Equal(t, "Ledger.py", results[0].Context["file_path"])
}

func TestSearchMinSimilarity(t *testing.T) {
	s, store, repo := newTestSearcher(t)
	ctx := context.Background()

	indexElement(t, store, repo, "close_match", types.KindFunction, atCosine(0.95))
	indexElement(t, store, repo, "unembedded", types.KindFunction, nil)

	// Without a threshold the zero-embedding element trails at rank 0.
	all, err := s.Search(ctx, "query", types.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "unembedded", all[1].Element.Name)
	assert.Equal(t, 0.0, all[1].Similarity)

	// Any positive threshold drops it.
	filtered, err := s.Search(ctx, "query", types.SearchFilters{MinSimilarity: 0.1})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "close_match", filtered[0].Element.Name)
}

func TestSearchRespectsLimit(t *testing.T) {
	s, store, repo := newTestSearcher(t)

	indexElement(t, store, repo, "a", types.KindFunction, atCosine(0.9))
	indexElement(t, store, repo, "b", types.KindFunction, atCosine(0.8))
	indexElement(t, store, repo, "c", types.KindFunction, atCosine(0.7))

	results, err := s.Search(context.Background(), "query", types.SearchFilters{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	s, _, _ := newTestSearcher(t)
	_, err := s.Search(context.Background(), "", types.SearchFilters{})
	assert.Error(t, err)
}

func TestSearchSimilarExcludesSelf(t *testing.T) {
	s, store, repo := newTestSearcher(t)
	ctx := context.Background()

	source := indexElement(t, store, repo, "order_total", types.KindFunction, atCosine(1.0))
	indexElement(t, store, repo, "invoice_total", types.KindFunction, atCosine(0.95))
	indexElement(t, store, repo, "unrelated", types.KindFunction, []float32{0, 1})

	results, err := s.SearchSimilar(ctx, repo.ID, source.FullName, types.SearchFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.NotEqual(t, source.FullName, r.Element.FullName)
	}
	assert.Equal(t, "invoice_total", results[0].Element.Name)
}

func TestSearchSimilarUnknownElement(t *testing.T) {
	s, _, repo := newTestSearcher(t)

	results, err := s.SearchSimilar(context.Background(), repo.ID, "nope:missing.py:gone", types.SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"parse", "user", "input"}, queryTerms("Parse user-input!"))
	assert.Empty(t, queryTerms("a & b"))
	assert.Equal(t, []string{"http2"}, queryTerms("http2"))
}
