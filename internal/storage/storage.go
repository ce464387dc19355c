package storage

import (
	"context"
	"time"

	"github.com/popoloni/codescope/pkg/types"
)

// Store defines the interface for persisting and querying indexed code.
type Store interface {
	// Repository operations
	CreateRepository(ctx context.Context, repo *types.Repository) error
	GetRepository(ctx context.Context, id string) (*types.Repository, error)
	GetRepositoryByName(ctx context.Context, name string) (*types.Repository, error)
	UpdateRepository(ctx context.Context, repo *types.Repository) error
	ListRepositories(ctx context.Context) ([]*types.Repository, error)
	DeleteRepository(ctx context.Context, id string) error

	// File and element operations. IndexFile replaces everything known
	// about one file atomically. DeleteFileScope removes the given
	// files, their elements and the edges originating in them.
	IndexFile(ctx context.Context, repositoryID string, file *types.ParsedFile, elements []types.CodeElement) error
	ListFiles(ctx context.Context, repositoryID string) ([]*FileRecord, error)
	DeleteFileScope(ctx context.Context, repositoryID string, paths []string) error

	// Element queries
	GetElement(ctx context.Context, repositoryID, fullName string) (*types.CodeElement, error)
	Candidates(ctx context.Context, filters types.SearchFilters) ([]types.CodeElement, error)

	// Edge operations. ReplaceEdges swaps the whole edge set for a
	// repository in one transaction; AppendEdges adds to it, used after
	// an incremental update has already deleted the affected files'
	// edges.
	ReplaceEdges(ctx context.Context, repositoryID string, edges []types.DependencyEdge) error
	AppendEdges(ctx context.Context, repositoryID string, edges []types.DependencyEdge) error
	ListEdges(ctx context.Context, repositoryID string) ([]types.DependencyEdge, error)

	// Embedding cache, the persistent tier behind the in-memory LRU.
	GetVector(ctx context.Context, hash string) ([]float32, bool, error)
	PutVector(ctx context.Context, hash string, vector []float32) error

	// Status reports per-repository index statistics.
	Status(ctx context.Context, repositoryID string) (*IndexStatus, error)

	Close() error
}

// FileRecord is a stored file row.
type FileRecord struct {
	ID            int64
	RepositoryID  string
	FilePath      string
	Language      string
	LineCount     int
	SizeBytes     int64
	ParseErrors   []types.ParseError
	Embedding     []float32
	LastIndexedAt time.Time
}

// IndexStatus summarizes one repository's index.
type IndexStatus struct {
	Repository     *types.Repository
	FileCount      int
	ElementCount   int
	EdgeCount      int
	EmbeddedCount  int
	CachedVectors  int
	ElementsByKind map[string]int
}
