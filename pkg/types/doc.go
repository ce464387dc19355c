// Package types defines the shared value types of the indexing and
// search core: repositories, code elements, parsed files, dependency
// edges, search filters, and search results.
//
// Identity rules:
//   - A Repository id is immutable once created.
//   - A CodeElement's FullName (repositoryID:filePath:name) is the stable
//     identity used as the graph-node key and the search-result key. It
//     must never collide within one repository.
//
// Everything in this package is a plain value type; no I/O happens here.
package types
