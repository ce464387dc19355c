package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// filtersSchema is shared by the two search tools.
var filtersSchema = map[string]interface{}{
	"type":        "object",
	"description": "Optional filters to narrow search candidates",
	"properties": map[string]interface{}{
		"languages": map[string]interface{}{
			"type":        "array",
			"description": "Filter by source language (go, python, javascript, typescript, java)",
			"items":       map[string]interface{}{"type": "string"},
		},
		"kinds": map[string]interface{}{
			"type":        "array",
			"description": "Filter by element kind",
			"items": map[string]interface{}{
				"type": "string",
				"enum": []string{"class", "function", "method", "interface", "enum", "variable", "constant", "module", "component", "service", "controller"},
			},
		},
		"repositories": map[string]interface{}{
			"type":        "array",
			"description": "Restrict to these repository names",
			"items":       map[string]interface{}{"type": "string"},
		},
		"categories": map[string]interface{}{
			"type":        "array",
			"description": "Filter by category tag (data_access, api, test, config, util, model, async, security)",
			"items":       map[string]interface{}{"type": "string"},
		},
		"min_similarity": map[string]interface{}{
			"type":        "number",
			"description": "Drop results below this cosine similarity (0-1)",
		},
		"max_results": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of results (default 10)",
			"minimum":     1,
			"maximum":     100,
		},
	},
}

// indexRepositoryTool returns the tool definition for index_repository
func indexRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repository",
		Description: "Index a source repository to make it semantically searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Repository name, the handle used by every other tool",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Optional repository-relative file paths; omit to index the whole tree",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"name", "path"},
		},
	}
}

// updateIndexTool returns the tool definition for update_index
func updateIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_index",
		Description: "Re-index only the given files of an already indexed repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name",
				},
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Repository-relative paths of changed or deleted files",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"repository", "paths"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed code with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"filters": filtersSchema,
			},
			Required: []string{"query"},
		},
	}
}

// searchSimilarCodeTool returns the tool definition for search_similar_code
func searchSimilarCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_similar_code",
		Description: "Find code elements similar to a given element",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name of the source element",
				},
				"element": map[string]interface{}{
					"type":        "string",
					"description": "Qualified element name: repository_id:file_path:name",
				},
				"filters": filtersSchema,
			},
			Required: []string{"repository", "element"},
		},
	}
}

// dependencyInsightsTool returns the tool definition for get_dependency_insights
func dependencyInsightsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_dependency_insights",
		Description: "Report coupling metrics, circular dependencies and edge distribution for a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name",
				},
				"from": map[string]interface{}{
					"type":        "string",
					"description": "Optional qualified element name; with 'to', also returns the shortest dependency path",
				},
				"to": map[string]interface{}{
					"type":        "string",
					"description": "Optional qualified element name, see 'from'",
				},
			},
			Required: []string{"repository"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics for one repository, or list all indexed repositories",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name; omit to list all repositories",
				},
			},
		},
	}
}
