package types

import "fmt"

// ParsedFile represents the output of parsing one source file. A file
// that failed to parse carries zero elements and a populated ParseErrors
// list; it never aborts the batch it belongs to.
type ParsedFile struct {
	FilePath  string
	Language  string
	Elements  []CodeElement
	Imports   []ImportInfo
	LineCount int
	SizeBytes int64

	// Embedding is the file-summary vector, filled in during indexing
	Embedding []float32

	ParseErrors []ParseError
}

// ParseError records a per-file syntax or grammar failure
type ParseError struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", pe.File, pe.Line, pe.Message)
	}
	return fmt.Sprintf("%s: %s", pe.File, pe.Message)
}

// HasErrors returns true if any parsing errors occurred
func (pf *ParsedFile) HasErrors() bool {
	return len(pf.ParseErrors) > 0
}

// AddError appends a parsing error to the file
func (pf *ParsedFile) AddError(line int, msg string) {
	pf.ParseErrors = append(pf.ParseErrors, ParseError{
		File:    pf.FilePath,
		Line:    line,
		Message: msg,
	})
}

// LocalImports returns only the imports resolving inside the repository
func (pf *ParsedFile) LocalImports() []ImportInfo {
	local := make([]ImportInfo, 0)
	for _, imp := range pf.Imports {
		if imp.IsLocal {
			local = append(local, imp)
		}
	}
	return local
}
