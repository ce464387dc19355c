package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/popoloni/codescope/internal/indexer"
	"github.com/popoloni/codescope/internal/storage"
	"github.com/popoloni/codescope/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeRepoNotFound       = -32001 // Repository is not indexed
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const maxReportedParseErrors = 5

// handleIndexRepository handles the index_repository tool invocation
func (s *Server) handleIndexRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, missingParam("name")
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, missingParam("path")
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	paths := getStringSlice(args, "paths")

	result, err := s.indexer.IndexRepository(ctx, name, path, paths)
	if err != nil {
		if errors.Is(err, indexer.ErrIndexingInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"repository_id":      result.RepositoryID,
		"files_indexed":      result.FilesIndexed,
		"elements_indexed":   result.ElementsIndexed,
		"dependencies_found": result.DependenciesFound,
		"elapsed_seconds":    result.ElapsedSeconds,
		"metrics": map[string]interface{}{
			"elements_by_kind":      result.Metrics.ElementsByKind,
			"files_by_language":     result.Metrics.FilesByLanguage,
			"avg_elements_per_file": result.Metrics.AvgElementsPerFile,
			"avg_lines_per_file":    result.Metrics.AvgLinesPerFile,
			"dependency_edges":      result.Metrics.DependencyEdges,
			"dependency_density":    result.Metrics.DependencyDensity,
		},
	}
	if n := len(result.ParseErrors); n > 0 {
		reported := result.ParseErrors
		if n > maxReportedParseErrors {
			reported = reported[:maxReportedParseErrors]
		}
		messages := make([]string, len(reported))
		for i := range reported {
			messages[i] = reported[i].Error()
		}
		response["parse_errors"] = messages
		response["parse_error_count"] = n
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUpdateIndex handles the update_index tool invocation
func (s *Server) handleUpdateIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}
	paths := getStringSlice(args, "paths")

	result, err := s.indexer.UpdateIndex(ctx, repository, paths)
	if err != nil {
		if errors.Is(err, indexer.ErrIndexingInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "update failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repository_id": result.RepositoryID,
		"updated_files": result.UpdatedFiles,
		"status":        result.Status,
	})), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	filters, err := s.parseFilters(ctx, args)
	if err != nil {
		return nil, err
	}

	results, err := s.searcher.Search(ctx, query, filters)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": formatResults(results),
	})), nil
}

// handleSearchSimilarCode handles the search_similar_code tool invocation
func (s *Server) handleSearchSimilarCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}
	element, ok := args["element"].(string)
	if !ok || element == "" {
		return nil, missingParam("element")
	}

	repo, err := s.store.GetRepositoryByName(ctx, repository)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, repoNotFound(repository)
		}
		return nil, internalError(err)
	}

	filters, err := s.parseFilters(ctx, args)
	if err != nil {
		return nil, err
	}

	results, err := s.searcher.SearchSimilar(ctx, repo.ID, element, filters)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"element": element,
		"count":   len(results),
		"results": formatResults(results),
	})), nil
}

// handleDependencyInsights handles the get_dependency_insights tool invocation
func (s *Server) handleDependencyInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}

	insights, err := s.indexer.Insights(ctx, repository)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, repoNotFound(repository)
		}
		return nil, internalError(err)
	}

	cycles := make([]map[string]interface{}, 0, len(insights.CircularDependencies))
	for _, c := range insights.CircularDependencies {
		cycles = append(cycles, map[string]interface{}{
			"members": c.Members,
			"path":    c.Path,
		})
	}

	response := map[string]interface{}{
		"repository_id": insights.RepositoryID,
		"coupling": map[string]interface{}{
			"density":        insights.Coupling.Density,
			"avg_fan_in":     insights.Coupling.AvgFanIn,
			"avg_fan_out":    insights.Coupling.AvgFanOut,
			"highly_coupled": insights.Coupling.HighlyCoupled,
		},
		"circular_dependencies": cycles,
		"edges_by_kind":         insights.EdgesByKind,
	}

	from, _ := args["from"].(string)
	to, _ := args["to"].(string)
	if from != "" && to != "" {
		path, err := s.indexer.DependencyPath(ctx, repository, from, to)
		if err != nil {
			return nil, internalError(err)
		}
		response["path"] = path
		response["path_found"] = path != nil
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	repository, _ := args["repository"].(string)

	if repository == "" {
		repos, err := s.store.ListRepositories(ctx)
		if err != nil {
			return nil, internalError(err)
		}
		list := make([]map[string]interface{}, 0, len(repos))
		for _, r := range repos {
			list = append(list, map[string]interface{}{
				"name":            r.Name,
				"root_path":       r.RootPath,
				"language":        r.Language,
				"total_files":     r.TotalFiles,
				"last_indexed_at": r.LastIndexedAt.Format(time.RFC3339),
			})
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"repositories": list,
		})), nil
	}

	status, err := s.indexer.Status(ctx, repository)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, repoNotFound(repository)
		}
		return nil, internalError(err)
	}

	repo := status.Repository
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repository": map[string]interface{}{
			"id":              repo.ID,
			"name":            repo.Name,
			"root_path":       repo.RootPath,
			"language":        repo.Language,
			"framework":       repo.Framework,
			"last_indexed_at": repo.LastIndexedAt.Format(time.RFC3339),
		},
		"statistics": map[string]interface{}{
			"files":            status.FileCount,
			"elements":         status.ElementCount,
			"edges":            status.EdgeCount,
			"embedded":         status.EmbeddedCount,
			"cached_vectors":   status.CachedVectors,
			"elements_by_kind": status.ElementsByKind,
		},
	})), nil
}

// parseFilters extracts the shared filters object, resolving repository
// names to ids.
func (s *Server) parseFilters(ctx context.Context, args map[string]interface{}) (types.SearchFilters, error) {
	var filters types.SearchFilters
	raw, ok := args["filters"].(map[string]interface{})
	if !ok {
		return filters, nil
	}

	filters.Languages = getStringSlice(raw, "languages")
	filters.Categories = getStringSlice(raw, "categories")
	for _, k := range getStringSlice(raw, "kinds") {
		kind := types.ElementKind(k)
		if !kind.Valid() {
			return filters, newMCPError(ErrorCodeInvalidParams, "invalid element kind", map[string]interface{}{
				"param": "kinds",
				"value": k,
			})
		}
		filters.Kinds = append(filters.Kinds, kind)
	}
	for _, name := range getStringSlice(raw, "repositories") {
		repo, err := s.store.GetRepositoryByName(ctx, name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return filters, repoNotFound(name)
			}
			return filters, internalError(err)
		}
		filters.RepositoryIDs = append(filters.RepositoryIDs, repo.ID)
	}
	if v, ok := raw["min_similarity"].(float64); ok {
		filters.MinSimilarity = v
	}
	filters.MaxResults = getIntDefault(raw, "max_results", 0)
	return filters, nil
}

// formatResults shapes search results for the wire.
func formatResults(results []types.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		e := r.Element
		entry := map[string]interface{}{
			"name":       e.Name,
			"full_name":  e.FullName,
			"kind":       string(e.Kind),
			"file_path":  e.FilePath,
			"start_line": e.StartLine,
			"end_line":   e.EndLine,
			"snippet":    e.Snippet,
			"similarity": r.Similarity,
			"rank_score": r.RankScore,
			"context":    r.Context,
		}
		if e.Description != "" {
			entry["description"] = e.Description
		}
		out = append(out, entry)
	}
	return out
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func missingParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, name+" parameter is required", map[string]interface{}{
		"param":  name,
		"reason": "missing or empty",
	})
}

func repoNotFound(name string) error {
	return newMCPError(ErrorCodeRepoNotFound, "repository not indexed", map[string]interface{}{
		"repository": name,
	})
}

func internalError(err error) error {
	return newMCPError(ErrorCodeInternalError, "internal error", map[string]interface{}{
		"error": err.Error(),
	})
}

// validatePath checks that path is an absolute, readable directory.
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return errors.New("path must be absolute")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.New("path does not exist")
	}
	if err != nil {
		return errors.New("path is not readable")
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
