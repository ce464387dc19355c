package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository describes an indexed source-code repository. Identity is
// immutable once created; counters and timestamps mutate on re-index.
type Repository struct {
	ID        string
	Name      string
	RemoteURL string // Optional
	RootPath  string

	// Detected on scan
	Language  string
	Framework string // Empty when none detected

	// Counters, recomputed per index run
	TotalFiles     int
	TotalLines     int
	TotalSizeBytes int64

	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRepository creates a repository descriptor with a fresh identity
func NewRepository(name, rootPath string) *Repository {
	return &Repository{
		ID:        uuid.NewString(),
		Name:      name,
		RootPath:  rootPath,
		CreatedAt: time.Now(),
	}
}

// Validate checks the repository descriptor
func (r *Repository) Validate() error {
	if r.ID == "" {
		return errors.New("repository id is required")
	}
	if r.Name == "" {
		return errors.New("repository name is required")
	}
	if r.RootPath == "" {
		return errors.New("repository root path is required")
	}
	return nil
}

// IndexingResult summarizes one indexing run. Returned even on partial
// failure, with per-file errors enumerated.
type IndexingResult struct {
	RepositoryID      string
	FilesIndexed      int
	ElementsIndexed   int
	DependenciesFound int
	ElapsedSeconds    float64
	Metrics           RepositoryMetrics
	ParseErrors       []ParseError
}

// RepositoryMetrics holds aggregate metrics computed after indexing
type RepositoryMetrics struct {
	ElementsByKind     map[string]int
	FilesByLanguage    map[string]int
	AvgElementsPerFile float64
	AvgLinesPerFile    float64
	DependencyEdges    int
	DependencyDensity  float64
}

// UpdateResult summarizes an incremental index update
type UpdateResult struct {
	RepositoryID string
	UpdatedFiles []string
	Status       string
}

// Update statuses
const (
	UpdateStatusOK       = "updated"
	UpdateStatusNotFound = "repository_not_found"
	UpdateStatusNoOp     = "no_changes"
)
