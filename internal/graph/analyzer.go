package graph

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/popoloni/codescope/pkg/types"
)

// Analyzer builds dependency graphs from parsed files
type Analyzer struct{}

// New creates a new Analyzer instance
func New() *Analyzer {
	return &Analyzer{}
}

// lookup is the repository-wide element table built before edge
// resolution, so each candidate match resolves in O(1)
type lookup struct {
	byFullName map[string]*types.CodeElement
	byBareName map[string][]*types.CodeElement
	fileByPath map[string]*types.ParsedFile
}

func buildLookup(files []*types.ParsedFile) *lookup {
	l := &lookup{
		byFullName: make(map[string]*types.CodeElement),
		byBareName: make(map[string][]*types.CodeElement),
		fileByPath: make(map[string]*types.ParsedFile, len(files)),
	}
	for _, f := range files {
		l.fileByPath[f.FilePath] = f
		for i := range f.Elements {
			elem := &f.Elements[i]
			l.byFullName[elem.FullName] = elem
			l.byBareName[elem.Name] = append(l.byBareName[elem.Name], elem)
			// Methods carry a qualified Owner.name; call sites in
			// snippets reference the bare suffix
			if bare := lastSegment(elem.Name); bare != elem.Name {
				l.byBareName[bare] = append(l.byBareName[bare], elem)
			}
		}
	}
	return l
}

// resolve finds the first element registered under a bare name. Cross-
// file name collisions resolve to an arbitrary-but-stable winner; the
// resulting false positives are accepted behavior.
func (l *lookup) resolve(name string) *types.CodeElement {
	if elems, ok := l.byBareName[name]; ok && len(elems) > 0 {
		return elems[0]
	}
	return nil
}

// BuildGraph infers the dependency graph for one repository from its
// parsed files
func (a *Analyzer) BuildGraph(repo *types.Repository, files []*types.ParsedFile) *types.DependencyGraph {
	l := buildLookup(files)

	g := &types.DependencyGraph{
		RepositoryID: repo.ID,
		Nodes:        make([]string, 0, len(l.byFullName)),
		Edges:        make([]types.DependencyEdge, 0),
	}
	nodeSeen := make(map[string]bool, len(l.byFullName))
	addNode := func(name string) {
		if !nodeSeen[name] {
			nodeSeen[name] = true
			g.Nodes = append(g.Nodes, name)
		}
	}

	for _, f := range files {
		for i := range f.Elements {
			addNode(f.Elements[i].FullName)
		}
	}

	for _, f := range files {
		localNames := localImportNames(f)
		for i := range f.Elements {
			elem := &f.Elements[i]
			a.inheritanceEdges(g, elem, f, l, addNode)
			a.compositionEdges(g, elem, f, l, addNode)
			a.methodCallEdges(g, elem, f, l, addNode)
			a.importUsageEdges(g, elem, f, localNames, l, addNode)
		}
		a.fileImportEdges(g, f, l, addNode)
	}

	return g
}

// Per-language inheritance token patterns. Each captures a parent name.
var inheritancePatterns = map[string][]*regexp.Regexp{
	"python": {
		regexp.MustCompile(`class\s+\w+\s*\(\s*([\w.]+)`),
	},
	"java": {
		regexp.MustCompile(`class\s+\w+\s+extends\s+(\w+)`),
		regexp.MustCompile(`class\s+\w+[^{]*\bimplements\s+(\w+)`),
		regexp.MustCompile(`interface\s+\w+\s+extends\s+(\w+)`),
	},
	"javascript": {
		regexp.MustCompile(`class\s+\w+\s+extends\s+([\w.]+)`),
	},
	"typescript": {
		regexp.MustCompile(`class\s+\w+\s+extends\s+([\w.]+)`),
		regexp.MustCompile(`class\s+\w+[^{]*\bimplements\s+([\w.]+)`),
		regexp.MustCompile(`interface\s+\w+\s+extends\s+([\w.]+)`),
	},
	"go": {
		// Interface embedding and struct embedding both read as a bare
		// capitalized identifier alone on its line
		regexp.MustCompile(`(?m)^\s+([A-Z]\w+)\s*$`),
	},
}

// Per-language composition patterns: a field assigned a constructed type
var compositionPatterns = map[string][]*regexp.Regexp{
	"python": {
		regexp.MustCompile(`self\.\w+\s*=\s*([A-Z]\w*)\s*\(`),
	},
	"java": {
		regexp.MustCompile(`=\s*new\s+([A-Z]\w*)\s*[(<]`),
	},
	"javascript": {
		regexp.MustCompile(`this\.\w+\s*=\s*new\s+([A-Z]\w*)\s*\(`),
	},
	"typescript": {
		regexp.MustCompile(`this\.\w+\s*=\s*new\s+([A-Z]\w*)\s*\(`),
		regexp.MustCompile(`private\s+\w+\s*:\s*([A-Z]\w*)`),
	},
	"go": {
		regexp.MustCompile(`=\s*&?([A-Z]\w*)\{`),
		regexp.MustCompile(`=\s*New([A-Z]\w*)\s*\(`),
	},
}

// methodCallPattern matches obj.method( shapes in every language here
var methodCallPattern = regexp.MustCompile(`\b\w+\.(\w+)\s*\(`)

func (a *Analyzer) inheritanceEdges(g *types.DependencyGraph, elem *types.CodeElement,
	f *types.ParsedFile, l *lookup, addNode func(string)) {
	for _, p := range patternsFor(inheritancePatterns, f.Language) {
		for _, m := range p.FindAllStringSubmatch(elem.Snippet, -1) {
			parent := strings.TrimSpace(lastSegment(m[1]))
			if parent == "" || parent == elem.Name {
				continue
			}
			if target := l.resolve(parent); target != nil {
				addEdge(g, addNode, elem.FullName, target.FullName, types.DepInheritance, f.FilePath)
			}
		}
	}
}

func (a *Analyzer) compositionEdges(g *types.DependencyGraph, elem *types.CodeElement,
	f *types.ParsedFile, l *lookup, addNode func(string)) {
	for _, p := range patternsFor(compositionPatterns, f.Language) {
		for _, m := range p.FindAllStringSubmatch(elem.Snippet, -1) {
			name := m[1]
			if name == elem.Name {
				continue
			}
			if target := l.resolve(name); target != nil {
				addEdge(g, addNode, elem.FullName, target.FullName, types.DepComposition, f.FilePath)
			}
		}
	}

	// The Go parser records struct field types as dependency references
	for _, dep := range elem.Dependencies {
		if dep == elem.Name {
			continue
		}
		if target := l.resolve(dep); target != nil {
			addEdge(g, addNode, elem.FullName, target.FullName, types.DepComposition, f.FilePath)
		}
	}
}

func (a *Analyzer) methodCallEdges(g *types.DependencyGraph, elem *types.CodeElement,
	f *types.ParsedFile, l *lookup, addNode func(string)) {
	for _, m := range methodCallPattern.FindAllStringSubmatch(elem.Snippet, -1) {
		called := m[1]
		// Bare-name resolution; same-element self calls are skipped
		target := l.resolve(called)
		if target == nil || target.FullName == elem.FullName {
			continue
		}
		if target.Kind != types.KindMethod && target.Kind != types.KindFunction {
			continue
		}
		addEdge(g, addNode, elem.FullName, target.FullName, types.DepMethodCall, f.FilePath)
	}
}

func (a *Analyzer) importUsageEdges(g *types.DependencyGraph, elem *types.CodeElement,
	f *types.ParsedFile, localNames map[string]bool, l *lookup, addNode func(string)) {
	if len(localNames) == 0 {
		return
	}
	for name := range localNames {
		if name == elem.Name || !containsIdentifier(elem.Snippet, name) {
			continue
		}
		if target := l.resolve(name); target != nil && target.FullName != elem.FullName {
			addEdge(g, addNode, elem.FullName, target.FullName, types.DepImportUsage, f.FilePath)
		}
	}
}

// fileImportEdges emits file-granularity edges straight from the import
// list, independent of element-level edges
func (a *Analyzer) fileImportEdges(g *types.DependencyGraph, f *types.ParsedFile, l *lookup, addNode func(string)) {
	for _, imp := range f.Imports {
		if !imp.IsLocal {
			continue
		}
		target := resolveImportFile(imp.Module, f.FilePath, l)
		if target == "" {
			target = imp.Module
		}
		addEdge(g, addNode, f.FilePath, target, types.DepFileImport, f.FilePath)
	}
}

// addEdge appends one edge with its kind's default strength. Duplicates
// between the same pair/kind are intentionally kept.
func addEdge(g *types.DependencyGraph, addNode func(string), from, to string,
	kind types.DependencyKind, fromFile string) {
	addNode(from)
	addNode(to)
	g.Edges = append(g.Edges, types.DependencyEdge{
		FromElement: from,
		ToElement:   to,
		Kind:        kind,
		Strength:    types.DependencyStrength[kind],
		FromFile:    fromFile,
	})
}

// localImportNames collects the names a file's local imports bind
func localImportNames(f *types.ParsedFile) map[string]bool {
	names := make(map[string]bool)
	for _, imp := range f.LocalImports() {
		if n := imp.BaseName(); n != "" {
			names[n] = true
		}
	}
	return names
}

// resolveImportFile maps a local import module to a parsed file path,
// when one matches by stem
func resolveImportFile(module, fromFile string, l *lookup) string {
	stem := strings.TrimLeft(module, "./")
	stem = strings.ReplaceAll(stem, ".", "/")
	for path := range l.fileByPath {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if base == filepath.Base(stem) || strings.HasSuffix(strings.TrimSuffix(path, filepath.Ext(path)), stem) {
			if path != fromFile {
				return path
			}
		}
	}
	return ""
}

func patternsFor(table map[string][]*regexp.Regexp, language string) []*regexp.Regexp {
	if ps, ok := table[language]; ok {
		return ps
	}
	// Generic/unknown languages reuse the broadest pattern sets
	return append(table["python"], table["javascript"]...)
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// containsIdentifier reports whether text contains name as a whole word
func containsIdentifier(text, name string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], name)
		if pos < 0 {
			return false
		}
		pos += idx
		beforeOK := pos == 0 || !isWordRune(text[pos-1])
		afterPos := pos + len(name)
		afterOK := afterPos >= len(text) || !isWordRune(text[afterPos])
		if beforeOK && afterOK {
			return true
		}
		idx = pos + len(name)
	}
}

func isWordRune(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// EdgeKey is a printable identity for debugging edge multisets
func EdgeKey(e types.DependencyEdge) string {
	return fmt.Sprintf("%s->%s[%s]", e.FromElement, e.ToElement, e.Kind)
}
