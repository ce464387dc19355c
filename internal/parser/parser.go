package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/popoloni/codescope/pkg/types"
)

// Supported languages
const (
	LangGo         = "go"
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangJava       = "java"
	LangGeneric    = "generic"
)

// extensionLanguages maps file extensions to languages
var extensionLanguages = map[string]string{
	".go":   LangGo,
	".py":   LangPython,
	".pyw":  LangPython,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".java": LangJava,
}

// Parser extracts code elements and imports from source files
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// Supported reports whether the file extension maps to a known
// language. Discovery skips unsupported files; explicitly named files
// still parse via the generic pattern scan.
func Supported(path string) bool {
	_, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DetectLanguage determines the language from a file extension.
// Unknown extensions map to the generic pattern scan.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return LangGeneric
}

// Parse parses one source file into elements and imports. When content
// is nil the file is read from disk. Syntax errors are recorded in the
// result's ParseErrors, never returned as an error: the only error case
// is failing to read the file itself.
func (p *Parser) Parse(filePath string, content []byte) (*types.ParsedFile, error) {
	if content == nil {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		content = data
	}

	language := DetectLanguage(filePath)
	result := &types.ParsedFile{
		FilePath:  filePath,
		Language:  language,
		LineCount: countLines(content),
		SizeBytes: int64(len(content)),
		Elements:  make([]types.CodeElement, 0),
		Imports:   make([]types.ImportInfo, 0),
	}

	switch language {
	case LangGo:
		p.parseGo(result, content)
	case LangPython:
		p.parsePatterns(result, content, pythonPatterns)
	case LangJavaScript:
		p.parsePatterns(result, content, javascriptPatterns)
	case LangTypeScript:
		p.parsePatterns(result, content, typescriptPatterns)
	case LangJava:
		p.parsePatterns(result, content, javaPatterns)
	default:
		p.parsePatterns(result, content, genericPatterns)
	}

	qualifyNames(result)

	// Post-extraction enrichment shared by all strategies
	for i := range result.Elements {
		elem := &result.Elements[i]
		elem.FilePath = filePath
		if len(elem.Categories) == 0 {
			elem.Categories = types.Categorize(elem)
		}
		if elem.Complexity == nil {
			score := scoreComplexity(elem.Snippet, language)
			elem.Complexity = &score
		}
	}

	return result, nil
}

// ParseBatch parses many files, isolating per-file failures. A file that
// cannot be read contributes a ParsedFile with a read error recorded; a
// file with syntax errors contributes its errors; neither stops the rest.
func (p *Parser) ParseBatch(paths []string) []*types.ParsedFile {
	results := make([]*types.ParsedFile, 0, len(paths))
	for _, path := range paths {
		parsed, err := p.Parse(path, nil)
		if err != nil {
			failed := &types.ParsedFile{
				FilePath: path,
				Language: DetectLanguage(path),
				Elements: make([]types.CodeElement, 0),
			}
			failed.AddError(0, err.Error())
			results = append(results, failed)
			continue
		}
		results = append(results, parsed)
	}
	return results
}

// containerKinds are the element kinds whose bodies own methods
var containerKinds = map[types.ElementKind]bool{
	types.KindClass:      true,
	types.KindInterface:  true,
	types.KindService:    true,
	types.KindController: true,
}

// qualifyNames makes element names unique within the file. Methods are
// prefixed with their enclosing container (the nearest container element
// declared at or above the method's line), mirroring how the Go walker
// prefixes methods with their receiver. Any names still colliding after
// that get a positional suffix, so that the file's elements can be stored
// under distinct full names.
func qualifyNames(result *types.ParsedFile) {
	for i := range result.Elements {
		elem := &result.Elements[i]
		if elem.Kind != types.KindMethod || strings.Contains(elem.Name, ".") {
			continue
		}
		owner := ""
		ownerLine := 0
		for j := range result.Elements {
			c := &result.Elements[j]
			if !containerKinds[c.Kind] || c.StartLine > elem.StartLine {
				continue
			}
			if c.StartLine >= ownerLine {
				owner = c.Name
				ownerLine = c.StartLine
			}
		}
		if owner != "" {
			elem.Name = owner + "." + elem.Name
		}
	}

	seen := make(map[string]int, len(result.Elements))
	for i := range result.Elements {
		elem := &result.Elements[i]
		seen[elem.Name]++
		if n := seen[elem.Name]; n > 1 {
			elem.Name = fmt.Sprintf("%s#%d", elem.Name, n)
		}
	}
}

// countLines counts newline-delimited lines, matching editor conventions
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}
