package graph

import "github.com/popoloni/codescope/pkg/types"

// CouplingMetrics computes fan-in/fan-out and density over the edge
// multiset. Parallel edges count individually, that is the point of
// keeping them. Always recomputed, never cached.
func CouplingMetrics(g *types.DependencyGraph) types.CouplingMetrics {
	m := types.CouplingMetrics{
		FanIn:  make(map[string]int, len(g.Nodes)),
		FanOut: make(map[string]int, len(g.Nodes)),
	}

	for _, node := range g.Nodes {
		m.FanIn[node] = 0
		m.FanOut[node] = 0
	}
	for _, e := range g.Edges {
		m.FanOut[e.FromElement]++
		m.FanIn[e.ToElement]++
	}

	n := len(g.Nodes)
	if n > 1 {
		m.Density = float64(len(g.Edges)) / float64(n*(n-1))
	}
	if n > 0 {
		total := float64(len(g.Edges))
		m.AvgFanIn = total / float64(n)
		m.AvgFanOut = total / float64(n)
	}

	// Highly coupled: fan-in or fan-out above twice the graph average
	for _, node := range g.Nodes {
		if float64(m.FanIn[node]) > 2*m.AvgFanIn || float64(m.FanOut[node]) > 2*m.AvgFanOut {
			m.HighlyCoupled = append(m.HighlyCoupled, node)
		}
	}

	return m
}

// EdgesByKind counts edges per dependency kind
func EdgesByKind(g *types.DependencyGraph) map[string]int {
	counts := make(map[string]int)
	for _, e := range g.Edges {
		counts[string(e.Kind)]++
	}
	return counts
}

// Insights bundles every derived view over one repository's graph,
// recomputed from the current edge set
func Insights(g *types.DependencyGraph) types.DependencyInsights {
	return types.DependencyInsights{
		RepositoryID:         g.RepositoryID,
		Coupling:             CouplingMetrics(g),
		CircularDependencies: FindCircularDependencies(g),
		EdgesByKind:          EdgesByKind(g),
	}
}
