package graph

import "github.com/popoloni/codescope/pkg/types"

// FindCircularDependencies computes strongly connected components over
// the edge set (Tarjan). Components of size > 1 are cycles; for each,
// one concrete cycle path is extracted for diagnostics.
func FindCircularDependencies(g *types.DependencyGraph) []types.Cycle {
	adj := g.Adjacency()

	t := &tarjanState{
		adj:     adj,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}

	for _, node := range g.Nodes {
		if _, visited := t.index[node]; !visited {
			t.strongConnect(node)
		}
	}

	cycles := make([]types.Cycle, 0)
	for _, comp := range t.components {
		if len(comp) < 2 {
			continue
		}
		cycles = append(cycles, types.Cycle{
			Members: comp,
			Path:    extractCyclePath(comp, adj),
		})
	}
	return cycles
}

type tarjanState struct {
	adj        map[string][]string
	index      map[string]int
	lowlink    map[string]int
	onStack    map[string]bool
	stack      []string
	counter    int
	components [][]string
}

// strongConnect is the iterative form of Tarjan's recursion, safe for
// graphs deeper than the goroutine stack would like
func (t *tarjanState) strongConnect(root string) {
	type frame struct {
		node string
		next int
	}
	callStack := []frame{{node: root}}

	for len(callStack) > 0 {
		f := &callStack[len(callStack)-1]
		node := f.node

		if f.next == 0 {
			t.index[node] = t.counter
			t.lowlink[node] = t.counter
			t.counter++
			t.stack = append(t.stack, node)
			t.onStack[node] = true
		}

		advanced := false
		neighbors := t.adj[node]
		for f.next < len(neighbors) {
			next := neighbors[f.next]
			f.next++
			if _, visited := t.index[next]; !visited {
				callStack = append(callStack, frame{node: next})
				advanced = true
				break
			}
			if t.onStack[next] && t.index[next] < t.lowlink[node] {
				t.lowlink[node] = t.index[next]
			}
		}
		if advanced {
			continue
		}

		// Node finished: pop a component if it is a root
		if t.lowlink[node] == t.index[node] {
			var comp []string
			for {
				top := t.stack[len(t.stack)-1]
				t.stack = t.stack[:len(t.stack)-1]
				t.onStack[top] = false
				comp = append(comp, top)
				if top == node {
					break
				}
			}
			t.components = append(t.components, comp)
		}

		callStack = callStack[:len(callStack)-1]
		if len(callStack) > 0 {
			parent := callStack[len(callStack)-1].node
			if t.lowlink[node] < t.lowlink[parent] {
				t.lowlink[parent] = t.lowlink[node]
			}
		}
	}
}

// extractCyclePath produces one concrete cycle through a component:
// start, ..., start. A BFS from start's in-component successors back to
// start finds the shortest such walk; inside a strongly connected
// component one always exists, so the nil return is unreachable for
// real components.
func extractCyclePath(members []string, adj map[string][]string) []string {
	inComp := make(map[string]bool, len(members))
	for _, m := range members {
		inComp[m] = true
	}

	start := members[0]
	parent := make(map[string]string, len(members))
	var queue []string

	for _, next := range adj[start] {
		if !inComp[next] {
			continue
		}
		if next == start {
			return []string{start, start}
		}
		if _, seen := parent[next]; seen {
			continue
		}
		parent[next] = start
		queue = append(queue, next)
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adj[node] {
			if !inComp[next] {
				continue
			}
			if next == start {
				cycle := []string{start}
				var tail []string
				for n := node; n != start; n = parent[n] {
					tail = append(tail, n)
				}
				for i := len(tail) - 1; i >= 0; i-- {
					cycle = append(cycle, tail[i])
				}
				return append(cycle, start)
			}
			if _, seen := parent[next]; !seen {
				parent[next] = node
				queue = append(queue, next)
			}
		}
	}
	return nil
}
