package types

import (
	"regexp"
	"strings"
)

// CategoryDef is one entry of the closed category taxonomy: a name, the
// keyword and pattern evidence that assigns it, and the element kinds it
// applies to. The table is immutable configuration, not a runtime map.
type CategoryDef struct {
	Name     string
	Keywords []string // Matched case-insensitively against name and snippet
	Patterns []*regexp.Regexp
	Kinds    []ElementKind // Empty means any kind
}

// CategoryTable is the closed set of category definitions applied at
// parse time. Extensible via data; coverage is compile-time checkable.
var CategoryTable = []CategoryDef{
	{
		Name:     "data_access",
		Keywords: []string{"repository", "query", "insert", "select", "database", "storage"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)\b(sql|db|orm|cursor)\b`)},
		Kinds:    []ElementKind{KindClass, KindFunction, KindMethod, KindService},
	},
	{
		Name:     "api",
		Keywords: []string{"handler", "endpoint", "route", "request", "response", "controller"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)\b(http|rest|get|post|put|delete)\b`)},
		Kinds:    []ElementKind{KindClass, KindFunction, KindMethod, KindController},
	},
	{
		Name:     "test",
		Keywords: []string{"test", "mock", "fixture", "assert"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)^test_|_test$|\btestcase\b`)},
	},
	{
		Name:     "config",
		Keywords: []string{"config", "settings", "options", "env"},
		Kinds:    []ElementKind{KindClass, KindVariable, KindConstant, KindModule},
	},
	{
		Name:     "util",
		Keywords: []string{"util", "helper", "format", "convert", "parse"},
		Kinds:    []ElementKind{KindFunction, KindMethod, KindModule},
	},
	{
		Name:     "model",
		Keywords: []string{"model", "entity", "schema", "record", "dto"},
		Kinds:    []ElementKind{KindClass, KindInterface, KindEnum},
	},
	{
		Name:     "async",
		Keywords: []string{"async", "await", "goroutine", "promise", "future", "channel"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\bgo\s+func\b|\basync\s+def\b|\bawait\b`)},
	},
	{
		Name:     "security",
		Keywords: []string{"auth", "token", "password", "crypt", "permission", "secret"},
	},
}

// appliesTo reports whether the definition covers the element kind
func (d *CategoryDef) appliesTo(kind ElementKind) bool {
	if len(d.Kinds) == 0 {
		return true
	}
	for _, k := range d.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// matches checks the definition's evidence against name and snippet
func (d *CategoryDef) matches(name, snippet string) bool {
	lowerName := strings.ToLower(name)
	lowerSnippet := strings.ToLower(snippet)
	for _, kw := range d.Keywords {
		if strings.Contains(lowerName, kw) || strings.Contains(lowerSnippet, kw) {
			return true
		}
	}
	for _, p := range d.Patterns {
		if p.MatchString(name) || p.MatchString(snippet) {
			return true
		}
	}
	return false
}

// Categorize assigns category tags to an element from the closed table.
// Order follows the table; each category appears at most once.
func Categorize(e *CodeElement) []string {
	tags := make([]string, 0, 2)
	for i := range CategoryTable {
		def := &CategoryTable[i]
		if !def.appliesTo(e.Kind) {
			continue
		}
		if def.matches(e.Name, e.Snippet) {
			tags = append(tags, def.Name)
		}
	}
	return tags
}
