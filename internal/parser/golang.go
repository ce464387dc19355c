package parser

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"strings"

	"github.com/popoloni/codescope/pkg/types"
)

// parseGo parses Go source through the native grammar and walks the
// syntax tree. Line ranges are exact; snippets are the exact source
// slice for the element's range, clipped to the snippet budget.
func (p *Parser) parseGo(result *types.ParsedFile, content []byte) {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, result.FilePath, content, goparser.ParseComments)
	if err != nil {
		// Syntax errors are non-fatal: record and keep whatever partial
		// AST the parser produced
		result.AddError(0, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil {
		return
	}

	result.Imports = extractGoImports(file)

	lines := strings.Split(string(content), "\n")
	walker := &goWalker{
		fset:   fset,
		lines:  lines,
		result: result,
	}
	ast.Inspect(file, walker.visit)
}

// extractGoImports extracts import statements from the AST
func extractGoImports(file *ast.File) []types.ImportInfo {
	imports := make([]types.ImportInfo, 0, len(file.Imports))
	for _, imp := range file.Imports {
		info := types.ImportInfo{
			Module: strings.Trim(imp.Path.Value, `"`),
			Kind:   types.ImportPlain,
		}
		if imp.Name != nil {
			info.Alias = imp.Name.Name
		}
		// Relative or single-segment paths stay within the repository;
		// anything with a dotted first segment is an external module
		first := info.Module
		if idx := strings.Index(first, "/"); idx > 0 {
			first = first[:idx]
		}
		info.IsLocal = !strings.Contains(first, ".")
		imports = append(imports, info)
	}
	return imports
}

// goWalker extracts elements during AST traversal
type goWalker struct {
	fset   *token.FileSet
	lines  []string
	result *types.ParsedFile
}

func (w *goWalker) visit(node ast.Node) bool {
	if node == nil {
		return false
	}
	switch n := node.(type) {
	case *ast.FuncDecl:
		w.extractFunc(n)
	case *ast.GenDecl:
		w.extractGenDecl(n)
	}
	return true
}

// extractFunc handles function and method declarations. A function with
// a receiver is a method, never a function.
func (w *goWalker) extractFunc(decl *ast.FuncDecl) {
	elem := types.CodeElement{
		Name:        decl.Name.Name,
		Kind:        types.KindFunction,
		StartLine:   w.line(decl.Pos()),
		EndLine:     w.line(decl.End()),
		Description: docText(decl.Doc),
	}
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		elem.Kind = types.KindMethod
		if recv := receiverName(decl.Recv.List[0].Type); recv != "" {
			// Two receivers may carry the same method name, so the
			// receiver becomes part of the element's identity
			elem.Name = recv + "." + elem.Name
			elem.Dependencies = append(elem.Dependencies, recv)
		}
	}
	elem.Snippet = w.slice(elem.StartLine, elem.EndLine)
	w.result.Elements = append(w.result.Elements, elem)
}

// extractGenDecl handles type, const, and var declarations
func (w *goWalker) extractGenDecl(decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			w.extractType(s, decl.Doc)
		case *ast.ValueSpec:
			w.extractValue(s, decl.Doc, decl.Tok)
		}
	}
}

func (w *goWalker) extractType(spec *ast.TypeSpec, doc *ast.CommentGroup) {
	elem := types.CodeElement{
		Name:        spec.Name.Name,
		StartLine:   w.line(spec.Pos()),
		EndLine:     w.line(spec.End()),
		Description: docText(doc),
	}

	switch t := spec.Type.(type) {
	case *ast.StructType:
		elem.Kind = types.KindClass
		elem.Dependencies = structFieldTypes(t)
	case *ast.InterfaceType:
		elem.Kind = types.KindInterface
	default:
		elem.Kind = types.KindClass
	}

	elem.Snippet = w.slice(elem.StartLine, elem.EndLine)
	w.result.Elements = append(w.result.Elements, elem)
}

func (w *goWalker) extractValue(spec *ast.ValueSpec, doc *ast.CommentGroup, tok token.Token) {
	kind := types.KindVariable
	if tok == token.CONST {
		kind = types.KindConstant
	}
	for _, name := range spec.Names {
		// Only package-level declarations are worth indexing; the
		// blank identifier carries no searchable meaning
		if name.Name == "_" {
			continue
		}
		elem := types.CodeElement{
			Name:        name.Name,
			Kind:        kind,
			StartLine:   w.line(spec.Pos()),
			EndLine:     w.line(spec.End()),
			Description: docText(doc),
		}
		elem.Snippet = w.slice(elem.StartLine, elem.EndLine)
		w.result.Elements = append(w.result.Elements, elem)
	}
}

// slice returns the exact source text for a 1-based line range, clipped
// to the snippet budget
func (w *goWalker) slice(start, end int) string {
	if start < 1 || start > len(w.lines) {
		return ""
	}
	if end > len(w.lines) {
		end = len(w.lines)
	}
	// A partial AST from a syntax error can carry an invalid End()
	// position that maps to line 0
	if end < start {
		return ""
	}
	return types.ClipSnippet(strings.Join(w.lines[start-1:end], "\n"))
}

func (w *goWalker) line(pos token.Pos) int {
	return w.fset.Position(pos).Line
}

// receiverName resolves a method receiver expression to its type name
func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr: // Generic receiver
		return receiverName(t.X)
	}
	return ""
}

// structFieldTypes collects named field type identifiers as composition
// dependency references
func structFieldTypes(st *ast.StructType) []string {
	if st.Fields == nil {
		return nil
	}
	var deps []string
	for _, field := range st.Fields.List {
		if name := baseTypeName(field.Type); name != "" {
			deps = append(deps, name)
		}
	}
	return deps
}

// baseTypeName unwraps pointers, slices and maps to the element type name
func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.ArrayType:
		return baseTypeName(t.Elt)
	case *ast.MapType:
		return baseTypeName(t.Value)
	case *ast.SelectorExpr:
		return t.Sel.Name
	}
	return ""
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
