package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/popoloni/codescope/pkg/types"
)

// trailingWindow is the extra context appended after a regex match when
// building a snippet, before clipping to the snippet budget
const trailingWindow = 200

// constructPattern recognizes one element construct in a language
// without a convenient grammar. The pattern must expose a `name` capture
// group. Matching is bounded and approximate: line numbers come from the
// match offset and there is no true scoping.
type constructPattern struct {
	kind    types.ElementKind
	pattern *regexp.Regexp
}

// importPattern recognizes one import statement shape. The pattern must
// expose a `module` capture group and may expose an `alias` group.
type importPattern struct {
	kind    types.ImportKind
	pattern *regexp.Regexp
	// local decides whether the captured module resolves inside the
	// repository; nil means never local
	local func(module string) bool
}

// languagePatterns bundles one language's regex strategy
type languagePatterns struct {
	constructs []constructPattern
	imports    []importPattern
}

func relativeModule(module string) bool {
	return strings.HasPrefix(module, ".")
}

var pythonPatterns = languagePatterns{
	constructs: []constructPattern{
		{types.KindClass, regexp.MustCompile(`(?m)^class\s+(?P<name>\w+)\s*[(:\s]`)},
		// Indented def is inside a class body: method, not function
		{types.KindMethod, regexp.MustCompile(`(?m)^[ \t]+(?:async\s+)?def\s+(?P<name>\w+)\s*\(`)},
		{types.KindFunction, regexp.MustCompile(`(?m)^(?:async\s+)?def\s+(?P<name>\w+)\s*\(`)},
		{types.KindConstant, regexp.MustCompile(`(?m)^(?P<name>[A-Z][A-Z0-9_]+)\s*=`)},
	},
	imports: []importPattern{
		{types.ImportFrom, regexp.MustCompile(`(?m)^from\s+(?P<module>[.\w]+)\s+import\s+`), relativeModule},
		{types.ImportPlain, regexp.MustCompile(`(?m)^import\s+(?P<module>[.\w]+)(?:\s+as\s+(?P<alias>\w+))?`), relativeModule},
		{types.ImportDynamic, regexp.MustCompile(`importlib\.import_module\(\s*['"](?P<module>[.\w]+)['"]`), relativeModule},
	},
}

var javascriptPatterns = languagePatterns{
	constructs: []constructPattern{
		{types.KindClass, regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?class\s+(?P<name>\w+)`)},
		{types.KindFunction, regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*(?P<name>\w+)\s*\(`)},
		{types.KindFunction, regexp.MustCompile(`(?m)^\s*(?:export\s+)?const\s+(?P<name>\w+)\s*=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*=>|\w+\s*=>)`)},
		{types.KindComponent, regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?(?:const|function)\s+(?P<name>[A-Z]\w+)\s*(?:=\s*)?\([^)]*\)\s*(?:=>\s*)?\{?\s*$`)},
		{types.KindVariable, regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:let|var)\s+(?P<name>\w+)\s*=`)},
	},
	imports: []importPattern{
		{types.ImportFrom, regexp.MustCompile(`(?m)^\s*import\s+.*?\s+from\s+['"](?P<module>[^'"]+)['"]`), relativeModule},
		{types.ImportPlain, regexp.MustCompile(`(?m)^\s*(?:const|let|var)\s+(?P<alias>\w+)\s*=\s*require\(\s*['"](?P<module>[^'"]+)['"]`), relativeModule},
		{types.ImportDynamic, regexp.MustCompile(`\bimport\(\s*['"](?P<module>[^'"]+)['"]`), relativeModule},
	},
}

var typescriptPatterns = languagePatterns{
	constructs: append([]constructPattern{
		{types.KindInterface, regexp.MustCompile(`(?m)^\s*(?:export\s+)?interface\s+(?P<name>\w+)`)},
		{types.KindEnum, regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:const\s+)?enum\s+(?P<name>\w+)`)},
		{types.KindService, regexp.MustCompile(`(?m)^\s*@Injectable\(\)\s*\n\s*(?:export\s+)?class\s+(?P<name>\w+)`)},
		{types.KindController, regexp.MustCompile(`(?m)^\s*@Controller\([^)]*\)\s*\n\s*(?:export\s+)?class\s+(?P<name>\w+)`)},
	}, javascriptPatterns.constructs...),
	imports: javascriptPatterns.imports,
}

var javaPatterns = languagePatterns{
	constructs: []constructPattern{
		{types.KindInterface, regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+|protected\s+)?(?:abstract\s+)?interface\s+(?P<name>\w+)`)},
		{types.KindEnum, regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+)?enum\s+(?P<name>\w+)`)},
		{types.KindClass, regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+|protected\s+)?(?:final\s+|abstract\s+|static\s+)*class\s+(?P<name>\w+)`)},
		{types.KindMethod, regexp.MustCompile(`(?m)^\s+(?:public|private|protected)\s+(?:static\s+|final\s+|synchronized\s+)*[\w<>\[\],\s]+\s+(?P<name>\w+)\s*\([^;]*\)\s*(?:throws\s+[\w,\s]+)?\s*\{`)},
	},
	imports: []importPattern{
		{types.ImportPlain, regexp.MustCompile(`(?m)^import\s+(?:static\s+)?(?P<module>[\w.]+(?:\.\*)?)\s*;`), nil},
	},
}

// genericPatterns is the fallback scan for unknown extensions: look for
// function/class-like tokens rather than failing
var genericPatterns = languagePatterns{
	constructs: []constructPattern{
		{types.KindClass, regexp.MustCompile(`(?m)\b(?:class|struct|trait)\s+(?P<name>\w+)`)},
		{types.KindFunction, regexp.MustCompile(`(?m)\b(?:func|function|def|fn|sub)\s+(?P<name>\w+)`)},
	},
	imports: []importPattern{
		{types.ImportPlain, regexp.MustCompile(`(?m)^\s*(?:import|require|include|use)\s+['"]?(?P<module>[\w./-]+)['"]?`), relativeModule},
	},
}

// parsePatterns runs one language's regex strategy over file content
func (p *Parser) parsePatterns(result *types.ParsedFile, content []byte, lang languagePatterns) {
	text := string(content)

	for _, ip := range lang.imports {
		for _, match := range ip.pattern.FindAllStringSubmatch(text, -1) {
			info := types.ImportInfo{Kind: ip.kind}
			for i, name := range ip.pattern.SubexpNames() {
				if i >= len(match) {
					break
				}
				switch name {
				case "module":
					info.Module = match[i]
				case "alias":
					info.Alias = match[i]
				}
			}
			if info.Module == "" {
				continue
			}
			if ip.local != nil {
				info.IsLocal = ip.local(info.Module)
			}
			result.Imports = append(result.Imports, info)
		}
	}

	claimed := make(map[string]bool) // name+line, so overlapping patterns don't double-report
	for _, cp := range lang.constructs {
		locs := cp.pattern.FindAllStringSubmatchIndex(text, -1)
		for _, loc := range locs {
			name := captureByName(cp.pattern, text, loc, "name")
			if name == "" {
				continue
			}
			startLine := 1 + strings.Count(text[:loc[0]], "\n")
			key := fmt.Sprintf("%s:%d", name, startLine)
			if claimed[key] {
				continue
			}
			claimed[key] = true

			// Matched span plus a trailing window, clipped with ellipsis
			end := loc[1] + trailingWindow
			if end > len(text) {
				end = len(text)
			}
			snippet := types.ClipSnippet(text[loc[0]:end])
			endLine := startLine + strings.Count(snippet, "\n")

			result.Elements = append(result.Elements, types.CodeElement{
				Name:      name,
				Kind:      cp.kind,
				StartLine: startLine,
				EndLine:   endLine,
				Snippet:   snippet,
			})
		}
	}
}

// captureByName extracts a named capture group from a submatch index set
func captureByName(re *regexp.Regexp, text string, loc []int, group string) string {
	for i, name := range re.SubexpNames() {
		if name != group {
			continue
		}
		if 2*i+1 < len(loc) && loc[2*i] >= 0 {
			return text[loc[2*i]:loc[2*i+1]]
		}
	}
	return ""
}
