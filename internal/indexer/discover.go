package indexer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/popoloni/codescope/internal/parser"
	"github.com/popoloni/codescope/pkg/types"
)

// Directories never worth indexing.
var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
}

// discoverFiles walks rootPath and returns repository-relative paths
// of all supported source files, sorted for determinism.
func discoverFiles(rootPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != rootPath && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.Supported(path) {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Import markers that identify a framework. First match wins within
// the dominant language.
var frameworkMarkers = []struct {
	framework string
	marker    string
}{
	{"django", "django"},
	{"flask", "flask"},
	{"fastapi", "fastapi"},
	{"react", "react"},
	{"express", "express"},
	{"angular", "@angular"},
	{"vue", "vue"},
	{"spring", "org.springframework"},
	{"gin", "github.com/gin-gonic/gin"},
	{"echo", "github.com/labstack/echo"},
}

// detectLanguageAndFramework picks the dominant language by file count
// and scans imports for a known framework.
func detectLanguageAndFramework(files []*types.ParsedFile) (language, framework string) {
	byLanguage := make(map[string]int)
	for _, f := range files {
		byLanguage[f.Language]++
	}
	best := 0
	for lang, count := range byLanguage {
		if count > best || (count == best && lang < language) {
			language = lang
			best = count
		}
	}

	for _, f := range files {
		for _, imp := range f.Imports {
			module := strings.ToLower(imp.Module)
			for _, fm := range frameworkMarkers {
				if module == fm.marker || strings.HasPrefix(module, fm.marker+".") || strings.HasPrefix(module, fm.marker+"/") {
					return language, fm.framework
				}
			}
		}
	}
	return language, ""
}
