// Package mcp exposes the indexing and search pipeline as an MCP
// server over stdio. Six tools are registered: index_repository,
// update_index, search_code, search_similar_code,
// get_dependency_insights and get_status.
package mcp
