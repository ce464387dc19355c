package types

import (
	"errors"
	"fmt"
	"strings"
)

// ElementKind represents the kind of code element extracted from source
type ElementKind string

const (
	KindClass      ElementKind = "class"
	KindFunction   ElementKind = "function"
	KindMethod     ElementKind = "method"
	KindInterface  ElementKind = "interface"
	KindEnum       ElementKind = "enum"
	KindVariable   ElementKind = "variable"
	KindConstant   ElementKind = "constant"
	KindModule     ElementKind = "module"
	KindComponent  ElementKind = "component"
	KindService    ElementKind = "service"
	KindController ElementKind = "controller"
)

// AllElementKinds lists every valid element kind
var AllElementKinds = []ElementKind{
	KindClass, KindFunction, KindMethod, KindInterface, KindEnum,
	KindVariable, KindConstant, KindModule, KindComponent,
	KindService, KindController,
}

// MaxSnippetLen bounds the stored source snippet per element
const MaxSnippetLen = 500

// SnippetEllipsis marks a snippet clipped to MaxSnippetLen
const SnippetEllipsis = "..."

// CodeElement represents a parsed, named unit of source code
type CodeElement struct {
	// Identity
	Name         string
	FullName     string // repositoryID:filePath:name
	Kind         ElementKind
	RepositoryID string
	FilePath     string

	// Location
	StartLine int
	EndLine   int

	// Content
	Snippet     string // Bounded source slice, see MaxSnippetLen
	Description string // May be empty; filled by heuristic or external collaborator

	// Classification
	Categories   []string
	Dependencies []string // Qualified names of referenced elements

	// Scoring inputs
	Complexity *float64  // Nil when unknown
	Embedding  []float32 // Lazily computed, cached by content hash
}

// QualifiedName builds the stable element identity key
func QualifiedName(repositoryID, filePath, name string) string {
	return fmt.Sprintf("%s:%s:%s", repositoryID, filePath, name)
}

// Valid reports whether k is a known element kind
func (k ElementKind) Valid() bool {
	for _, known := range AllElementKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ValidateKind checks if the element kind is valid
func (e *CodeElement) ValidateKind() error {
	if !e.Kind.Valid() {
		return errors.New("invalid element kind")
	}
	return nil
}

// Validate performs comprehensive validation of the element
func (e *CodeElement) Validate() error {
	if e.Name == "" {
		return errors.New("element name is required")
	}
	if e.RepositoryID == "" {
		return errors.New("repository id is required")
	}
	if e.FilePath == "" {
		return errors.New("file path is required")
	}
	if err := e.ValidateKind(); err != nil {
		return err
	}
	if e.StartLine <= 0 || e.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if e.StartLine > e.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if e.FullName != QualifiedName(e.RepositoryID, e.FilePath, e.Name) {
		return errors.New("full name does not match repository, file path and name")
	}
	return nil
}

// SetFullName derives FullName from the element's identity fields
func (e *CodeElement) SetFullName() {
	e.FullName = QualifiedName(e.RepositoryID, e.FilePath, e.Name)
}

// ClipSnippet truncates text to the snippet budget, appending an
// ellipsis marker when clipped
func ClipSnippet(text string) string {
	if len(text) <= MaxSnippetLen {
		return text
	}
	return text[:MaxSnippetLen-len(SnippetEllipsis)] + SnippetEllipsis
}

// HasCategory reports whether the element carries the given tag
func (e *CodeElement) HasCategory(tag string) bool {
	for _, c := range e.Categories {
		if c == tag {
			return true
		}
	}
	return false
}

// ImportKind represents the flavor of an import statement
type ImportKind string

const (
	ImportPlain   ImportKind = "import"
	ImportFrom    ImportKind = "from"
	ImportDynamic ImportKind = "dynamic"
)

// ImportInfo describes one import statement found in a source file
type ImportInfo struct {
	Module  string
	Alias   string
	IsLocal bool // Resolves to a file inside this repository
	Kind    ImportKind
}

// BaseName returns the name an import binds in the importing file:
// the alias when present, otherwise the last path segment
func (i ImportInfo) BaseName() string {
	if i.Alias != "" {
		return i.Alias
	}
	module := i.Module
	if idx := strings.LastIndexAny(module, "./"); idx >= 0 && idx < len(module)-1 {
		module = module[idx+1:]
	}
	return module
}
