package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popoloni/codescope/internal/embedder"
	"github.com/popoloni/codescope/internal/logging"
	"github.com/popoloni/codescope/internal/parser"
	"github.com/popoloni/codescope/internal/storage"
	"github.com/popoloni/codescope/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestIndexer(t *testing.T) (*Indexer, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	provider, err := embedder.NewLocalProvider(32)
	require.NoError(t, err)
	gen := embedder.NewGenerator(provider, logging.Discard(), embedder.WithVectorCache(store))

	return New(store, gen, logging.Discard(), nil, Config{Workers: 2, BatchSize: 4}), store
}

func findElement(t *testing.T, elements []types.CodeElement, name string) *types.CodeElement {
	t.Helper()
	for i := range elements {
		if elements[i].Name == name {
			return &elements[i]
		}
	}
	return nil
}

const modelsSource = `class Base:
    def greet(self):
        return "hi"

class Child(Base):
    def run(self):
        return self.greet()
`

const helpersSource = `def helper():
    return 1
`

func TestIndexRepositoryFull(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "models.py", modelsSource)
	writeFile(t, root, "helpers.py", helpersSource)
	writeFile(t, root, "README.md", "not source")

	result, err := idx.IndexRepository(ctx, "demo", root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesIndexed, "unsupported files are not indexed")
	assert.GreaterOrEqual(t, result.ElementsIndexed, 3)
	assert.Greater(t, result.DependenciesFound, 0)
	assert.Empty(t, result.ParseErrors)
	assert.Greater(t, result.ElapsedSeconds, 0.0)
	assert.Equal(t, 2, result.Metrics.FilesByLanguage["python"])
	assert.GreaterOrEqual(t, result.Metrics.ElementsByKind["class"], 2)

	repo, err := store.GetRepositoryByName(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "python", repo.Language)
	assert.Equal(t, 2, repo.TotalFiles)
	assert.False(t, repo.LastIndexedAt.IsZero())

	elements, err := store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	require.NoError(t, err)

	child := findElement(t, elements, "Child")
	require.NotNil(t, child)
	assert.Equal(t, types.QualifiedName(repo.ID, "models.py", "Child"), child.FullName)
	assert.NotEmpty(t, child.Embedding, "every element gets an embedding")
	require.NotNil(t, child.Complexity)

	files, err := store.ListFiles(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotEmpty(t, f.Embedding, "file %s gets a summary embedding", f.FilePath)
	}

	edges, err := store.ListEdges(ctx, repo.ID)
	require.NoError(t, err)
	var foundInheritance bool
	for _, e := range edges {
		if e.Kind == types.DepInheritance && e.FromElement == child.FullName {
			foundInheritance = true
		}
	}
	assert.True(t, foundInheritance, "Child(Base) produces an inheritance edge")
}

func TestIndexRepositoryDuplicateMethodNames(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "conn.go", `package demo

type Pool struct{}

func (p *Pool) Close() error { return nil }

type Session struct{}

func (s *Session) Close() error { return nil }
`)
	writeFile(t, root, "models.py", `class Account:
    def __init__(self):
        self.balance = 0

class Order:
    def __init__(self):
        self.items = []
`)

	result, err := idx.IndexRepository(ctx, "dupes", root, nil)
	require.NoError(t, err, "same-named methods on different owners must not collide")
	assert.Equal(t, 2, result.FilesIndexed)
	assert.GreaterOrEqual(t, result.ElementsIndexed, 8)

	repo, err := store.GetRepositoryByName(ctx, "dupes")
	require.NoError(t, err)
	elements, err := store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	require.NoError(t, err)

	for _, name := range []string{"Pool.Close", "Session.Close", "Account.__init__", "Order.__init__"} {
		assert.NotNil(t, findElement(t, elements, name), "expected element %s", name)
	}
}

func TestIndexRepositoryIsolatesParseFailures(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "ok.go", "package demo\n\nfunc Fine() int { return 1 }\n")
	writeFile(t, root, "broken.go", "package demo\n\nfunc {{{\n")

	result, err := idx.IndexRepository(ctx, "mixed", root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesIndexed)
	assert.NotEmpty(t, result.ParseErrors)

	repo, err := store.GetRepositoryByName(ctx, "mixed")
	require.NoError(t, err)
	elements, err := store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	require.NoError(t, err)
	assert.NotNil(t, findElement(t, elements, "Fine"), "healthy files index despite a broken neighbor")
}

func TestIndexParsed(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	p := parser.New()
	models, err := p.Parse("models.py", []byte(modelsSource))
	require.NoError(t, err)
	helpers, err := p.Parse("helpers.py", []byte(helpersSource))
	require.NoError(t, err)

	result, err := idx.IndexParsed(ctx, "preparsed", t.TempDir(), []*types.ParsedFile{models, helpers})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesIndexed)
	assert.GreaterOrEqual(t, result.ElementsIndexed, 3)
	assert.Greater(t, result.DependenciesFound, 0)

	repo, err := store.GetRepositoryByName(ctx, "preparsed")
	require.NoError(t, err)
	assert.Equal(t, "python", repo.Language)

	elements, err := store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	require.NoError(t, err)
	child := findElement(t, elements, "Child")
	require.NotNil(t, child)
	assert.Equal(t, types.QualifiedName(repo.ID, "models.py", "Child"), child.FullName)
	assert.NotEmpty(t, child.Embedding)
}

func TestIndexRepositoryReindexIsIdempotent(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "models.py", modelsSource)

	first, err := idx.IndexRepository(ctx, "demo", root, nil)
	require.NoError(t, err)
	second, err := idx.IndexRepository(ctx, "demo", root, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ElementsIndexed, second.ElementsIndexed)
	assert.Equal(t, first.RepositoryID, second.RepositoryID)

	repo, err := store.GetRepositoryByName(ctx, "demo")
	require.NoError(t, err)
	status, err := store.Status(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ElementsIndexed, status.ElementCount, "re-indexing does not duplicate rows")
}

func TestUpdateIndexScoping(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "a.py", "def old_handler():\n    return 1\n")
	writeFile(t, root, "b.py", "def stable():\n    return 2\n")
	_, err := idx.IndexRepository(ctx, "demo", root, nil)
	require.NoError(t, err)

	writeFile(t, root, "a.py", "def new_handler():\n    return 3\n")
	result, err := idx.UpdateIndex(ctx, "demo", []string{"a.py"})
	require.NoError(t, err)
	assert.Equal(t, types.UpdateStatusOK, result.Status)
	assert.Equal(t, []string{"a.py"}, result.UpdatedFiles)

	repo, err := store.GetRepositoryByName(ctx, "demo")
	require.NoError(t, err)
	elements, err := store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	require.NoError(t, err)

	assert.Nil(t, findElement(t, elements, "old_handler"), "stale elements are gone")
	assert.NotNil(t, findElement(t, elements, "new_handler"))
	assert.NotNil(t, findElement(t, elements, "stable"), "untouched files keep their rows")
}

func TestUpdateIndexRemovedFile(t *testing.T) {
	idx, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "gone.py", "def vanishing():\n    return 0\n")
	_, err := idx.IndexRepository(ctx, "demo", root, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.py")))
	result, err := idx.UpdateIndex(ctx, "demo", []string{"gone.py"})
	require.NoError(t, err)
	assert.Equal(t, types.UpdateStatusOK, result.Status)

	repo, err := store.GetRepositoryByName(ctx, "demo")
	require.NoError(t, err)
	elements, err := store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	require.NoError(t, err)
	assert.Nil(t, findElement(t, elements, "vanishing"))

	status, err := store.Status(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.FileCount)
}

func TestUpdateIndexUnknownRepository(t *testing.T) {
	idx, _ := newTestIndexer(t)

	result, err := idx.UpdateIndex(context.Background(), "nope", []string{"a.py"})
	require.NoError(t, err)
	assert.Equal(t, types.UpdateStatusNotFound, result.Status)
}

func TestUpdateIndexNoPaths(t *testing.T) {
	idx, _ := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "m.py", helpersSource)
	_, err := idx.IndexRepository(ctx, "demo", root, nil)
	require.NoError(t, err)

	result, err := idx.UpdateIndex(ctx, "demo", nil)
	require.NoError(t, err)
	assert.Equal(t, types.UpdateStatusNoOp, result.Status)
}

func TestInsights(t *testing.T) {
	idx, _ := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, root, "models.py", modelsSource)
	_, err := idx.IndexRepository(ctx, "demo", root, nil)
	require.NoError(t, err)

	insights, err := idx.Insights(ctx, "demo")
	require.NoError(t, err)
	assert.NotEmpty(t, insights.EdgesByKind)

	total := 0
	for _, n := range insights.EdgesByKind {
		total += n
	}
	assert.GreaterOrEqual(t, insights.Coupling.Density, 0.0)
	assert.Greater(t, total, 0)

	_, err = idx.Insights(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	require.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())
}

func TestDiscoverFilesSkipsNoise(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.py", helpersSource)
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}")
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, "notes.txt", "hello")

	files, err := discoverFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.py"}, files)
}
