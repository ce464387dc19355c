package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/popoloni/codescope/internal/embedder"
	"github.com/popoloni/codescope/internal/graph"
	"github.com/popoloni/codescope/internal/logging"
	"github.com/popoloni/codescope/internal/metrics"
	"github.com/popoloni/codescope/internal/parser"
	"github.com/popoloni/codescope/internal/storage"
	"github.com/popoloni/codescope/pkg/types"
)

// ErrIndexingInProgress is returned when an indexing run is already
// underway on this Indexer.
var ErrIndexingInProgress = errors.New("indexing already in progress")

const defaultBatchSize = 32

// Config tunes indexing concurrency.
type Config struct {
	Workers   int // Parser concurrency (default: NumCPU)
	BatchSize int // Elements per embedding batch (default: 32)
}

// Indexer coordinates the pipeline: parse -> graph -> embed -> store.
type Indexer struct {
	parser    *parser.Parser
	analyzer  *graph.Analyzer
	generator *embedder.Generator
	store     storage.Store
	logger    logging.Logger
	metrics   *metrics.Metrics

	workers   int
	batchSize int
	lock      IndexLock
}

// New creates an Indexer.
func New(store storage.Store, generator *embedder.Generator, logger logging.Logger, m *metrics.Metrics, cfg Config) *Indexer {
	if logger == nil {
		logger = logging.Discard()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Indexer{
		parser:    parser.New(),
		analyzer:  graph.New(),
		generator: generator,
		store:     store,
		logger:    logger,
		metrics:   m,
		workers:   workers,
		batchSize: batchSize,
	}
}

// IndexRepository runs a full index of the repository rooted at
// rootPath. When paths is nil the tree is walked for supported source
// files; otherwise only the given repository-relative paths are
// indexed. Per-file parse failures are collected in the result, not
// returned as errors.
func (idx *Indexer) IndexRepository(ctx context.Context, name, rootPath string, paths []string) (*types.IndexingResult, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()

	repo, err := idx.getOrCreateRepository(ctx, name, rootPath)
	if err != nil {
		return nil, err
	}

	if paths == nil {
		paths, err = discoverFiles(repo.RootPath)
		if err != nil {
			return nil, fmt.Errorf("discovering files: %w", err)
		}
	}

	files := idx.parseFiles(ctx, repo, paths)
	return idx.indexParsed(ctx, repo, files, start)
}

// IndexParsed indexes files that the caller already parsed, for hosts
// that run their own parsing front end. File paths must be repository-
// relative; the pipeline after parsing is identical to IndexRepository.
func (idx *Indexer) IndexParsed(ctx context.Context, name, rootPath string, files []*types.ParsedFile) (*types.IndexingResult, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()

	repo, err := idx.getOrCreateRepository(ctx, name, rootPath)
	if err != nil {
		return nil, err
	}
	return idx.indexParsed(ctx, repo, files, start)
}

// indexParsed is the shared tail of a full indexing run: qualify,
// analyze, embed, store, and refresh repository counters.
func (idx *Indexer) indexParsed(ctx context.Context, repo *types.Repository, files []*types.ParsedFile, start time.Time) (*types.IndexingResult, error) {
	idx.qualify(repo.ID, files)

	language, framework := detectLanguageAndFramework(files)
	repo.Language = language
	repo.Framework = framework

	depGraph := idx.analyzer.BuildGraph(repo, files)

	if err := idx.embedFiles(ctx, files); err != nil {
		return nil, err
	}

	result := &types.IndexingResult{RepositoryID: repo.ID}
	repo.TotalFiles = 0
	repo.TotalLines = 0
	repo.TotalSizeBytes = 0
	for _, f := range files {
		if err := idx.store.IndexFile(ctx, repo.ID, f, f.Elements); err != nil {
			return nil, fmt.Errorf("storing %s: %w", f.FilePath, err)
		}
		idx.metrics.RecordFileIndexed()
		result.FilesIndexed++
		result.ElementsIndexed += len(f.Elements)
		result.ParseErrors = append(result.ParseErrors, f.ParseErrors...)
		repo.TotalFiles++
		repo.TotalLines += f.LineCount
		repo.TotalSizeBytes += f.SizeBytes
	}
	idx.metrics.RecordElementsIndexed(result.ElementsIndexed)
	for range result.ParseErrors {
		idx.metrics.RecordParseFailure()
	}

	if err := idx.store.ReplaceEdges(ctx, repo.ID, depGraph.Edges); err != nil {
		return nil, fmt.Errorf("storing dependency edges: %w", err)
	}
	result.DependenciesFound = len(depGraph.Edges)

	repo.LastIndexedAt = time.Now()
	if err := idx.store.UpdateRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("updating repository: %w", err)
	}

	result.Metrics = computeMetrics(files, depGraph)
	result.ElapsedSeconds = time.Since(start).Seconds()
	idx.metrics.RecordIndexDuration(result.ElapsedSeconds)

	idx.logger.InfoContext(ctx, "indexing completed",
		"repository", repo.Name, "files", result.FilesIndexed,
		"elements", result.ElementsIndexed, "edges", result.DependenciesFound,
		"parse_errors", len(result.ParseErrors), "elapsed_s", result.ElapsedSeconds)
	return result, nil
}

// UpdateIndex re-indexes only the named repository-relative paths.
// Files that no longer exist on disk are dropped from the index; the
// rest of the repository is untouched except for edges out of the
// updated files, which are recomputed.
func (idx *Indexer) UpdateIndex(ctx context.Context, name string, paths []string) (*types.UpdateResult, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	repo, err := idx.store.GetRepositoryByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &types.UpdateResult{Status: types.UpdateStatusNotFound}, nil
		}
		return nil, err
	}

	result := &types.UpdateResult{RepositoryID: repo.ID}
	if len(paths) == 0 {
		result.Status = types.UpdateStatusNoOp
		return result, nil
	}

	// Drop the old rows first so removed files disappear and surviving
	// files cannot be double-counted.
	if err := idx.store.DeleteFileScope(ctx, repo.ID, paths); err != nil {
		return nil, fmt.Errorf("removing stale rows: %w", err)
	}

	var surviving []string
	for _, path := range paths {
		if _, err := os.Stat(filepath.Join(repo.RootPath, path)); err == nil {
			surviving = append(surviving, path)
		}
	}

	files := idx.parseFiles(ctx, repo, surviving)
	idx.qualify(repo.ID, files)

	if err := idx.embedFiles(ctx, files); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := idx.store.IndexFile(ctx, repo.ID, f, f.Elements); err != nil {
			return nil, fmt.Errorf("storing %s: %w", f.FilePath, err)
		}
	}

	// Rebuild edges originating in the updated files. Cross-file
	// targets resolve against the rest of the stored repository.
	edges, err := idx.updatedEdges(ctx, repo, files, paths)
	if err != nil {
		return nil, err
	}
	if err := idx.store.AppendEdges(ctx, repo.ID, edges); err != nil {
		return nil, fmt.Errorf("storing dependency edges: %w", err)
	}

	if err := idx.refreshCounters(ctx, repo); err != nil {
		return nil, err
	}

	result.UpdatedFiles = paths
	result.Status = types.UpdateStatusOK
	idx.logger.InfoContext(ctx, "incremental update completed",
		"repository", repo.Name, "paths", len(paths), "reindexed", len(surviving), "edges", len(edges))
	return result, nil
}

// Insights recomputes coupling metrics, circular dependencies and edge
// distribution from the stored graph. Analytics are always derived
// fresh, never persisted.
func (idx *Indexer) Insights(ctx context.Context, name string) (*types.DependencyInsights, error) {
	g, err := idx.loadGraph(ctx, name)
	if err != nil {
		return nil, err
	}
	insights := graph.Insights(g)
	return &insights, nil
}

// DependencyPath returns the shortest dependency chain between two
// elements, or nil when no path exists.
func (idx *Indexer) DependencyPath(ctx context.Context, name, from, to string) ([]string, error) {
	g, err := idx.loadGraph(ctx, name)
	if err != nil {
		return nil, err
	}
	return graph.ShortestPath(g, from, to), nil
}

// Status reports stored index statistics for a repository by name.
func (idx *Indexer) Status(ctx context.Context, name string) (*storage.IndexStatus, error) {
	repo, err := idx.store.GetRepositoryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return idx.store.Status(ctx, repo.ID)
}

func (idx *Indexer) getOrCreateRepository(ctx context.Context, name, rootPath string) (*types.Repository, error) {
	repo, err := idx.store.GetRepositoryByName(ctx, name)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	repo = types.NewRepository(name, rootPath)
	if err := idx.store.CreateRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// parseFiles parses the given repository-relative paths concurrently.
// Unreadable files contribute a ParsedFile carrying the read error.
func (idx *Indexer) parseFiles(ctx context.Context, repo *types.Repository, paths []string) []*types.ParsedFile {
	files := make([]*types.ParsedFile, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, rel := range paths {
		g.Go(func() error {
			parsed, err := idx.parser.Parse(filepath.Join(repo.RootPath, rel), nil)
			if err != nil {
				parsed = &types.ParsedFile{
					FilePath: rel,
					Language: parser.DetectLanguage(rel),
					Elements: make([]types.CodeElement, 0),
				}
				parsed.AddError(0, err.Error())
				idx.logger.WarnContext(ctx, "file skipped", "path", rel, "error", err)
			}
			rebase(parsed, rel)
			files[i] = parsed
			return nil
		})
	}
	_ = g.Wait()
	return files
}

// rebase rewrites the absolute parse path to the repository-relative
// one everywhere it appears.
func rebase(f *types.ParsedFile, rel string) {
	f.FilePath = rel
	for i := range f.Elements {
		f.Elements[i].FilePath = rel
	}
	for i := range f.ParseErrors {
		f.ParseErrors[i].File = rel
	}
}

// qualify assigns every element its repository identity and stable
// qualified name. Graph analysis depends on FullName being set.
func (idx *Indexer) qualify(repositoryID string, files []*types.ParsedFile) {
	for _, f := range files {
		for i := range f.Elements {
			e := &f.Elements[i]
			e.RepositoryID = repositoryID
			e.SetFullName()
		}
	}
}

// embedFiles attaches embeddings to every element, in bounded batches,
// then embeds each file's summary rendering for file-level similarity.
// Backend failures surface as zero vectors, not errors.
func (idx *Indexer) embedFiles(ctx context.Context, files []*types.ParsedFile) error {
	var all []*types.CodeElement
	for _, f := range files {
		for i := range f.Elements {
			all = append(all, &f.Elements[i])
		}
	}

	for start := 0; start < len(all); start += idx.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+idx.batchSize, len(all))
		batch := all[start:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = embedder.RenderElement(e)
		}
		vectors := idx.generator.EmbedBatch(ctx, texts)
		for i, e := range batch {
			e.Embedding = vectors[i]
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.Embedding = idx.generator.EmbedFile(ctx, f)
	}
	return nil
}

// updatedEdges recomputes edges whose source lies in the updated
// paths. Stored elements from untouched files join the lookup so
// cross-file references still resolve.
func (idx *Indexer) updatedEdges(ctx context.Context, repo *types.Repository, updated []*types.ParsedFile, paths []string) ([]types.DependencyEdge, error) {
	updatedSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		updatedSet[p] = true
	}

	stored, err := idx.store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	if err != nil {
		return nil, fmt.Errorf("loading stored elements: %w", err)
	}

	byFile := make(map[string]*types.ParsedFile)
	for _, e := range stored {
		if updatedSet[e.FilePath] {
			continue
		}
		f, ok := byFile[e.FilePath]
		if !ok {
			f = &types.ParsedFile{
				FilePath: e.FilePath,
				Language: parser.DetectLanguage(e.FilePath),
			}
			byFile[e.FilePath] = f
		}
		f.Elements = append(f.Elements, e)
	}

	all := make([]*types.ParsedFile, 0, len(byFile)+len(updated))
	all = append(all, updated...)
	for _, f := range byFile {
		all = append(all, f)
	}

	full := idx.analyzer.BuildGraph(repo, all)
	var edges []types.DependencyEdge
	for _, e := range full.Edges {
		if updatedSet[e.FromFile] {
			edges = append(edges, e)
		}
	}
	return edges, nil
}

// refreshCounters recomputes repository totals from stored files.
func (idx *Indexer) refreshCounters(ctx context.Context, repo *types.Repository) error {
	files, err := idx.store.ListFiles(ctx, repo.ID)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	repo.TotalFiles = len(files)
	repo.TotalLines = 0
	repo.TotalSizeBytes = 0
	for _, f := range files {
		repo.TotalLines += f.LineCount
		repo.TotalSizeBytes += f.SizeBytes
	}
	repo.LastIndexedAt = time.Now()
	return idx.store.UpdateRepository(ctx, repo)
}

// loadGraph reconstructs the dependency graph from storage.
func (idx *Indexer) loadGraph(ctx context.Context, name string) (*types.DependencyGraph, error) {
	repo, err := idx.store.GetRepositoryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	edges, err := idx.store.ListEdges(ctx, repo.ID)
	if err != nil {
		return nil, err
	}
	elements, err := idx.store.Candidates(ctx, types.SearchFilters{RepositoryIDs: []string{repo.ID}})
	if err != nil {
		return nil, err
	}

	g := &types.DependencyGraph{RepositoryID: repo.ID, Edges: edges}
	seen := make(map[string]bool)
	for _, e := range elements {
		if !seen[e.FullName] {
			seen[e.FullName] = true
			g.Nodes = append(g.Nodes, e.FullName)
		}
	}
	// Edge endpoints that are files rather than elements still need a
	// node entry for the analytics passes.
	for _, e := range edges {
		for _, endpoint := range []string{e.FromElement, e.ToElement} {
			if !seen[endpoint] {
				seen[endpoint] = true
				g.Nodes = append(g.Nodes, endpoint)
			}
		}
	}
	return g, nil
}

// computeMetrics derives the aggregate metrics block of a full run.
func computeMetrics(files []*types.ParsedFile, g *types.DependencyGraph) types.RepositoryMetrics {
	m := types.RepositoryMetrics{
		ElementsByKind:  make(map[string]int),
		FilesByLanguage: make(map[string]int),
		DependencyEdges: len(g.Edges),
	}

	totalElements := 0
	totalLines := 0
	for _, f := range files {
		m.FilesByLanguage[f.Language]++
		totalLines += f.LineCount
		for i := range f.Elements {
			m.ElementsByKind[string(f.Elements[i].Kind)]++
			totalElements++
		}
	}
	if len(files) > 0 {
		m.AvgElementsPerFile = float64(totalElements) / float64(len(files))
		m.AvgLinesPerFile = float64(totalLines) / float64(len(files))
	}
	if n := len(g.Nodes); n > 1 {
		m.DependencyDensity = float64(len(g.Edges)) / float64(n*(n-1))
	}
	return m
}
