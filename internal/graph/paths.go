package graph

import "github.com/popoloni/codescope/pkg/types"

// ShortestPath finds the shortest dependency path between two nodes by
// breadth-first search over the directed adjacency list. Returns nil
// when the target is unreachable from the source.
func ShortestPath(g *types.DependencyGraph, from, to string) []string {
	if from == to {
		return []string{from}
	}

	adj := g.Adjacency()
	if _, ok := adj[from]; !ok {
		// Source may still be a node with no outgoing edges
		present := false
		for _, n := range g.Nodes {
			if n == from {
				present = true
				break
			}
		}
		if !present {
			return nil
		}
	}

	prev := map[string]string{from: from}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adj[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == to {
				return reconstruct(prev, from, to)
			}
			queue = append(queue, next)
		}
	}

	return nil
}

func reconstruct(prev map[string]string, from, to string) []string {
	path := []string{to}
	for node := to; node != from; node = prev[node] {
		path = append(path, prev[node])
	}
	// Reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
