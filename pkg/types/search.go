package types

// SearchFilters narrows search candidates. A zero value matches
// everything. Purely a query descriptor; stateless.
type SearchFilters struct {
	Languages     []string
	Kinds         []ElementKind
	RepositoryIDs []string
	Categories    []string
	MinSimilarity float64
	MaxResults    int
}

// DefaultMaxResults caps result sets when MaxResults is unset
const DefaultMaxResults = 10

// Limit returns the effective result cap
func (f SearchFilters) Limit() int {
	if f.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return f.MaxResults
}

// AllowsKind reports whether the filter admits the given element kind
func (f SearchFilters) AllowsKind(kind ElementKind) bool {
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// AllowsLanguage reports whether the filter admits the given language
func (f SearchFilters) AllowsLanguage(lang string) bool {
	if len(f.Languages) == 0 {
		return true
	}
	for _, l := range f.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// SearchResult wraps one element with its scores. Constructed per query,
// never persisted.
type SearchResult struct {
	Element    CodeElement
	Similarity float64        // Raw cosine similarity, in [0,1] after clamping
	RankScore  float64        // Similarity adjusted by ranking heuristics
	Context    map[string]any // file path, kind, categories, complexity
}

// NewResultContext builds the small context map for a search result
func NewResultContext(e *CodeElement) map[string]any {
	ctx := map[string]any{
		"file_path": e.FilePath,
		"kind":      string(e.Kind),
	}
	if len(e.Categories) > 0 {
		ctx["categories"] = e.Categories
	}
	if e.Complexity != nil {
		ctx["complexity"] = *e.Complexity
	}
	return ctx
}
