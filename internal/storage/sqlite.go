package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/popoloni/codescope/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity.
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// New creates a SQLite store at dbPath, applying migrations. Use
// ":memory:" for an ephemeral database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Repository operations

func (s *SQLiteStore) CreateRepository(ctx context.Context, repo *types.Repository) error {
	if err := repo.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO repositories (id, name, remote_url, root_path, language, framework,
		                          total_files, total_lines, total_size_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		repo.ID, repo.Name, repo.RemoteURL, repo.RootPath, repo.Language, repo.Framework,
		repo.TotalFiles, repo.TotalLines, repo.TotalSizeBytes, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: repository %s", ErrAlreadyExists, repo.Name)
		}
		return fmt.Errorf("failed to create repository: %w", err)
	}
	repo.CreatedAt = now
	repo.UpdatedAt = now
	return nil
}

const repositoryColumns = `id, name, remote_url, root_path, language, framework,
       total_files, total_lines, total_size_bytes, last_indexed_at, created_at, updated_at`

func scanRepository(row *sql.Row) (*types.Repository, error) {
	var repo types.Repository
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&repo.ID, &repo.Name, &repo.RemoteURL, &repo.RootPath, &repo.Language, &repo.Framework,
		&repo.TotalFiles, &repo.TotalLines, &repo.TotalSizeBytes,
		&lastIndexedAt, &repo.CreatedAt, &repo.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		repo.LastIndexedAt = lastIndexedAt.Time
	}
	return &repo, nil
}

func (s *SQLiteStore) GetRepository(ctx context.Context, id string) (*types.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE id = ?`
	return scanRepository(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) GetRepositoryByName(ctx context.Context, name string) (*types.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE name = ?`
	return scanRepository(s.db.QueryRowContext(ctx, query, name))
}

func (s *SQLiteStore) UpdateRepository(ctx context.Context, repo *types.Repository) error {
	query := `
		UPDATE repositories
		SET name = ?, remote_url = ?, language = ?, framework = ?,
		    total_files = ?, total_lines = ?, total_size_bytes = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	var lastIndexedAt any
	if !repo.LastIndexedAt.IsZero() {
		lastIndexedAt = repo.LastIndexedAt
	}
	result, err := s.db.ExecContext(ctx, query,
		repo.Name, repo.RemoteURL, repo.Language, repo.Framework,
		repo.TotalFiles, repo.TotalLines, repo.TotalSizeBytes,
		lastIndexedAt, now, repo.ID)
	if err != nil {
		return fmt.Errorf("failed to update repository: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: repository %s", ErrNotFound, repo.ID)
	}
	repo.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) ListRepositories(ctx context.Context) ([]*types.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*types.Repository
	for rows.Next() {
		var repo types.Repository
		var lastIndexedAt sql.NullTime
		if err := rows.Scan(
			&repo.ID, &repo.Name, &repo.RemoteURL, &repo.RootPath, &repo.Language, &repo.Framework,
			&repo.TotalFiles, &repo.TotalLines, &repo.TotalSizeBytes,
			&lastIndexedAt, &repo.CreatedAt, &repo.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if lastIndexedAt.Valid {
			repo.LastIndexedAt = lastIndexedAt.Time
		}
		repos = append(repos, &repo)
	}
	return repos, rows.Err()
}

func (s *SQLiteStore) DeleteRepository(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM repositories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: repository %s", ErrNotFound, id)
	}
	return nil
}

// File and element operations

// IndexFile replaces everything stored for one file in a single
// transaction: the file row, its elements and the edges that were
// discovered in it. A crash mid-run leaves the file either fully old
// or fully new.
func (s *SQLiteStore) IndexFile(ctx context.Context, repositoryID string, file *types.ParsedFile, elements []types.CodeElement) error {
	parseErrors, err := json.Marshal(file.ParseErrors)
	if err != nil {
		return fmt.Errorf("failed to encode parse errors: %w", err)
	}

	var embedding []byte
	if len(file.Embedding) > 0 {
		embedding = serializeVector(file.Embedding)
	}

	return s.withTx(ctx, func(q querier) error {
		if err := deleteFileRows(ctx, q, repositoryID, file.FilePath); err != nil {
			return err
		}

		_, err := q.ExecContext(ctx, `
			INSERT INTO files (repository_id, file_path, language, line_count, size_bytes, parse_errors, embedding, last_indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, repositoryID, file.FilePath, file.Language, file.LineCount, file.SizeBytes, string(parseErrors), embedding, time.Now())
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", file.FilePath, err)
		}

		for i := range elements {
			if err := insertElement(ctx, q, repositoryID, file.Language, &elements[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteFileRows(ctx context.Context, q querier, repositoryID, filePath string) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM dependency_edges WHERE repository_id = ? AND from_file = ?",
		repositoryID, filePath); err != nil {
		return fmt.Errorf("failed to delete edges for %s: %w", filePath, err)
	}
	if _, err := q.ExecContext(ctx,
		"DELETE FROM elements WHERE repository_id = ? AND file_path = ?",
		repositoryID, filePath); err != nil {
		return fmt.Errorf("failed to delete elements for %s: %w", filePath, err)
	}
	if _, err := q.ExecContext(ctx,
		"DELETE FROM files WHERE repository_id = ? AND file_path = ?",
		repositoryID, filePath); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

func insertElement(ctx context.Context, q querier, repositoryID, language string, e *types.CodeElement) error {
	categories, err := json.Marshal(e.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	dependencies, err := json.Marshal(e.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to encode dependencies: %w", err)
	}

	var complexity any
	if e.Complexity != nil {
		complexity = *e.Complexity
	}
	var embedding []byte
	if len(e.Embedding) > 0 {
		embedding = serializeVector(e.Embedding)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO elements (repository_id, file_path, name, full_name, kind, language,
		                      start_line, end_line, snippet, description, categories,
		                      dependencies, complexity, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, repositoryID, e.FilePath, e.Name, e.FullName, string(e.Kind), language,
		e.StartLine, e.EndLine, e.Snippet, e.Description, string(categories),
		string(dependencies), complexity, embedding)
	if err != nil {
		return fmt.Errorf("failed to insert element %s: %w", e.FullName, err)
	}
	return nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, repositoryID string) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository_id, file_path, language, line_count, size_bytes, parse_errors, embedding, last_indexed_at
		FROM files WHERE repository_id = ? ORDER BY file_path
	`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*FileRecord
	for rows.Next() {
		var f FileRecord
		var parseErrors sql.NullString
		var embedding []byte
		var lastIndexedAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.RepositoryID, &f.FilePath, &f.Language,
			&f.LineCount, &f.SizeBytes, &parseErrors, &embedding, &lastIndexedAt); err != nil {
			return nil, err
		}
		if parseErrors.Valid && parseErrors.String != "" {
			if err := json.Unmarshal([]byte(parseErrors.String), &f.ParseErrors); err != nil {
				return nil, fmt.Errorf("failed to decode parse errors for %s: %w", f.FilePath, err)
			}
		}
		if len(embedding) > 0 {
			vec, err := deserializeVector(embedding)
			if err != nil {
				return nil, fmt.Errorf("failed to decode embedding for %s: %w", f.FilePath, err)
			}
			f.Embedding = vec
		}
		if lastIndexedAt.Valid {
			f.LastIndexedAt = lastIndexedAt.Time
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// DeleteFileScope removes the given files, their elements and the
// edges originating in them, all in one transaction. Elements from
// other files keep their rows until those files are re-indexed.
func (s *SQLiteStore) DeleteFileScope(ctx context.Context, repositoryID string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		for _, path := range paths {
			if err := deleteFileRows(ctx, q, repositoryID, path); err != nil {
				return err
			}
		}
		return nil
	})
}

// Element queries

const elementColumns = `repository_id, file_path, name, full_name, kind,
       start_line, end_line, snippet, description, categories, dependencies, complexity, embedding`

func (s *SQLiteStore) GetElement(ctx context.Context, repositoryID, fullName string) (*types.CodeElement, error) {
	query := `SELECT ` + elementColumns + ` FROM elements WHERE repository_id = ? AND full_name = ?`
	rows, err := s.db.QueryContext(ctx, query, repositoryID, fullName)
	if err != nil {
		return nil, fmt.Errorf("failed to query element: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: element %s", ErrNotFound, fullName)
	}
	return scanElement(rows)
}

func scanElement(rows *sql.Rows) (*types.CodeElement, error) {
	var e types.CodeElement
	var kind string
	var categories, dependencies sql.NullString
	var complexity sql.NullFloat64
	var embedding []byte

	if err := rows.Scan(&e.RepositoryID, &e.FilePath, &e.Name, &e.FullName, &kind,
		&e.StartLine, &e.EndLine, &e.Snippet, &e.Description,
		&categories, &dependencies, &complexity, &embedding); err != nil {
		return nil, err
	}

	e.Kind = types.ElementKind(kind)
	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &e.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories for %s: %w", e.FullName, err)
		}
	}
	if dependencies.Valid && dependencies.String != "" {
		if err := json.Unmarshal([]byte(dependencies.String), &e.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to decode dependencies for %s: %w", e.FullName, err)
		}
	}
	if complexity.Valid {
		c := complexity.Float64
		e.Complexity = &c
	}
	if len(embedding) > 0 {
		vec, err := deserializeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", e.FullName, err)
		}
		e.Embedding = vec
	}
	return &e, nil
}

// Candidates returns elements matching the filter predicates. Rows
// come back unscored; similarity and ranking happen in the caller.
func (s *SQLiteStore) Candidates(ctx context.Context, filters types.SearchFilters) ([]types.CodeElement, error) {
	query := `SELECT ` + elementColumns + ` FROM elements WHERE 1=1`
	var args []any

	if len(filters.RepositoryIDs) > 0 {
		query += " AND repository_id IN (" + placeholders(len(filters.RepositoryIDs)) + ")"
		for _, id := range filters.RepositoryIDs {
			args = append(args, id)
		}
	}
	if len(filters.Kinds) > 0 {
		query += " AND kind IN (" + placeholders(len(filters.Kinds)) + ")"
		for _, kind := range filters.Kinds {
			args = append(args, string(kind))
		}
	}
	if len(filters.Languages) > 0 {
		query += " AND language IN (" + placeholders(len(filters.Languages)) + ")"
		for _, lang := range filters.Languages {
			args = append(args, lang)
		}
	}
	if len(filters.Categories) > 0 {
		// Categories are stored as a JSON string array; match the
		// quoted token inside it.
		var likes []string
		for _, cat := range filters.Categories {
			likes = append(likes, "categories LIKE ?")
			args = append(args, `%"`+cat+`"%`)
		}
		query += " AND (" + strings.Join(likes, " OR ") + ")"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var elements []types.CodeElement
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, *e)
	}
	return elements, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Edge operations

// ReplaceEdges swaps the whole edge set for a repository.
func (s *SQLiteStore) ReplaceEdges(ctx context.Context, repositoryID string, edges []types.DependencyEdge) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx,
			"DELETE FROM dependency_edges WHERE repository_id = ?", repositoryID); err != nil {
			return fmt.Errorf("failed to clear edges: %w", err)
		}
		return insertEdges(ctx, q, repositoryID, edges)
	})
}

// AppendEdges adds edges without touching the existing set.
func (s *SQLiteStore) AppendEdges(ctx context.Context, repositoryID string, edges []types.DependencyEdge) error {
	if len(edges) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		return insertEdges(ctx, q, repositoryID, edges)
	})
}

func insertEdges(ctx context.Context, q querier, repositoryID string, edges []types.DependencyEdge) error {
	for i := range edges {
		e := &edges[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid edge %s -> %s: %w", e.FromElement, e.ToElement, err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO dependency_edges (repository_id, from_element, to_element, kind, strength, from_file)
			VALUES (?, ?, ?, ?, ?, ?)
		`, repositoryID, e.FromElement, e.ToElement, string(e.Kind), e.Strength, e.FromFile); err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListEdges(ctx context.Context, repositoryID string) ([]types.DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_element, to_element, kind, strength, from_file
		FROM dependency_edges WHERE repository_id = ? ORDER BY id
	`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []types.DependencyEdge
	for rows.Next() {
		var e types.DependencyEdge
		var kind string
		var fromFile sql.NullString
		if err := rows.Scan(&e.FromElement, &e.ToElement, &kind, &e.Strength, &fromFile); err != nil {
			return nil, err
		}
		e.Kind = types.DependencyKind(kind)
		e.FromFile = fromFile.String
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Embedding cache

// GetVector reads the persistent embedding cache.
func (s *SQLiteStore) GetVector(ctx context.Context, hash string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT vector FROM embedding_cache WHERE content_hash = ?", hash).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding cache: %w", err)
	}
	vec, err := deserializeVector(blob)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt embedding cache entry %s: %w", hash, err)
	}
	return vec, true, nil
}

// PutVector writes the persistent embedding cache. Re-writing the same
// hash is a no-op update.
func (s *SQLiteStore) PutVector(ctx context.Context, hash string, vector []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (content_hash, vector, dimension)
		VALUES (?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension
	`, hash, serializeVector(vector), len(vector))
	if err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return nil
}

// Status

func (s *SQLiteStore) Status(ctx context.Context, repositoryID string) (*IndexStatus, error) {
	repo, err := s.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	status := &IndexStatus{
		Repository:     repo,
		ElementsByKind: make(map[string]int),
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM files WHERE repository_id = ?", &status.FileCount},
		{"SELECT COUNT(*) FROM elements WHERE repository_id = ?", &status.ElementCount},
		{"SELECT COUNT(*) FROM dependency_edges WHERE repository_id = ?", &status.EdgeCount},
		{"SELECT COUNT(*) FROM elements WHERE repository_id = ? AND embedding IS NOT NULL", &status.EmbeddedCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, repositoryID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embedding_cache").Scan(&status.CachedVectors); err != nil {
		return nil, fmt.Errorf("failed to count cached vectors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, COUNT(*) FROM elements WHERE repository_id = ? GROUP BY kind", repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to count elements by kind: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		status.ElementsByKind[kind] = count
	}
	return status, rows.Err()
}
