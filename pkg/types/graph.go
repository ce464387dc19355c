package types

import "errors"

// DependencyKind represents the relationship a dependency edge encodes
type DependencyKind string

const (
	DepInheritance DependencyKind = "inheritance"
	DepComposition DependencyKind = "composition"
	DepMethodCall  DependencyKind = "method_call"
	DepImportUsage DependencyKind = "import_usage"
	DepFileImport  DependencyKind = "file_import"
)

// Default strength weights per dependency kind. Strength feeds heuristic
// ranking only, never correctness.
var DependencyStrength = map[DependencyKind]float64{
	DepInheritance: 0.9,
	DepComposition: 0.7,
	DepMethodCall:  0.5,
	DepImportUsage: 0.4,
	DepFileImport:  0.3,
}

// DependencyEdge is a directed relation between two elements (or files,
// for file_import edges), identified by qualified name or file path.
// Duplicate edges between the same pair and kind are deliberately kept:
// multiplicity feeds coupling metrics.
type DependencyEdge struct {
	FromElement string
	ToElement   string
	Kind        DependencyKind
	Strength    float64 // In [0,1]
	FromFile    string  // File the edge was discovered in
}

// Validate checks the edge fields
func (e *DependencyEdge) Validate() error {
	if e.FromElement == "" || e.ToElement == "" {
		return errors.New("edge endpoints are required")
	}
	switch e.Kind {
	case DepInheritance, DepComposition, DepMethodCall, DepImportUsage, DepFileImport:
	default:
		return errors.New("invalid dependency kind")
	}
	if e.Strength < 0 || e.Strength > 1 {
		return errors.New("edge strength must be in [0,1]")
	}
	return nil
}

// DependencyGraph is one repository's node set and edge multiset.
// Cycles and coupling metrics are derived from Edges on demand and are
// never stored as ground truth.
type DependencyGraph struct {
	RepositoryID string
	Nodes        []string // Qualified names encountered
	Edges        []DependencyEdge
}

// Adjacency builds the directed adjacency list from the edge multiset.
// Parallel edges collapse to a single neighbor entry.
func (g *DependencyGraph) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(g.Nodes))
	seen := make(map[[2]string]bool, len(g.Edges))
	for _, e := range g.Edges {
		key := [2]string{e.FromElement, e.ToElement}
		if seen[key] {
			continue
		}
		seen[key] = true
		adj[e.FromElement] = append(adj[e.FromElement], e.ToElement)
	}
	return adj
}

// CouplingMetrics summarizes fan-in/fan-out over the edge multiset
type CouplingMetrics struct {
	FanIn         map[string]int
	FanOut        map[string]int
	Density       float64 // edges / (nodes * (nodes-1))
	AvgFanIn      float64
	AvgFanOut     float64
	HighlyCoupled []string // fan-in or fan-out > 2x graph average
}

// Cycle is one strongly connected component of size > 1, with one
// concrete path through it for diagnostics
type Cycle struct {
	Members []string
	Path    []string // Concrete cycle, first node repeated last; may be empty
}

// DependencyInsights is the user-facing derived view over one
// repository's graph, recomputed from current edges on every call
type DependencyInsights struct {
	RepositoryID         string
	Coupling             CouplingMetrics
	CircularDependencies []Cycle
	EdgesByKind          map[string]int
}
