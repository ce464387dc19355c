// Package searcher ranks stored code elements against natural-language
// queries and against other elements.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/popoloni/codescope/internal/embedder"
	"github.com/popoloni/codescope/internal/logging"
	"github.com/popoloni/codescope/internal/metrics"
	"github.com/popoloni/codescope/internal/storage"
	"github.com/popoloni/codescope/pkg/types"
)

// Searcher executes semantic searches over the index.
type Searcher struct {
	store     storage.Store
	generator *embedder.Generator
	logger    logging.Logger
	metrics   *metrics.Metrics
}

// New creates a Searcher.
func New(store storage.Store, generator *embedder.Generator, logger logging.Logger, m *metrics.Metrics) *Searcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Searcher{
		store:     store,
		generator: generator,
		logger:    logger,
		metrics:   m,
	}
}

// Search embeds the query, scores every candidate admitted by the
// filters and returns the top results by rank score. Candidates with a
// missing or zero embedding score 0 and fall to the bottom; a positive
// MinSimilarity drops them entirely.
func (s *Searcher) Search(ctx context.Context, query string, filters types.SearchFilters) ([]types.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	start := time.Now()

	queryVector := s.generator.EmbedQuery(ctx, query)
	terms := queryTerms(query)

	candidates, err := s.store.Candidates(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	results := s.score(candidates, queryVector, terms, filters, "")

	s.metrics.RecordSearch(time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "search completed",
		"query", query, "candidates", len(candidates), "results", len(results),
		"elapsed_ms", time.Since(start).Milliseconds())
	return results, nil
}

// SearchSimilar finds elements similar to the one named by fullName,
// using its stored embedding as the query vector. The element itself
// is excluded from results. An unknown element yields an empty result
// set, not an error.
func (s *Searcher) SearchSimilar(ctx context.Context, repositoryID, fullName string, filters types.SearchFilters) ([]types.SearchResult, error) {
	start := time.Now()

	source, err := s.store.GetElement(ctx, repositoryID, fullName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "similar-search source not found", "element", fullName)
			return []types.SearchResult{}, nil
		}
		return nil, fmt.Errorf("loading source element: %w", err)
	}
	if len(source.Embedding) == 0 {
		return []types.SearchResult{}, nil
	}

	candidates, err := s.store.Candidates(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	results := s.score(candidates, source.Embedding, nil, filters, source.FullName)

	s.metrics.RecordSearch(time.Since(start).Seconds())
	return results, nil
}

// score ranks candidates against queryVector, honoring MinSimilarity
// and the result cap. exclude names an element to skip.
func (s *Searcher) score(candidates []types.CodeElement, queryVector []float32, terms []string, filters types.SearchFilters, exclude string) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(candidates))
	for i := range candidates {
		e := &candidates[i]
		if exclude != "" && e.FullName == exclude {
			continue
		}

		similarity := embedder.Similarity(queryVector, e.Embedding)
		if similarity < 0 {
			similarity = 0
		}
		if filters.MinSimilarity > 0 && similarity < filters.MinSimilarity {
			continue
		}

		results = append(results, types.SearchResult{
			Element:    *e,
			Similarity: similarity,
			RankScore:  Rank(similarity, e, terms),
			Context:    types.NewResultContext(e),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RankScore != results[j].RankScore {
			return results[i].RankScore > results[j].RankScore
		}
		return results[i].Element.FullName < results[j].Element.FullName
	})

	if limit := filters.Limit(); len(results) > limit {
		results = results[:limit]
	}
	return results
}
