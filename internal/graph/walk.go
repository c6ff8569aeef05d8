package graph

import "sort"

// IncidentFunc returns the edge keys incident to a node, in deterministic
// order.
type IncidentFunc func(id string) []EdgeKey

// EndpointFunc returns the node reached by traversing an edge.
type EndpointFunc func(k EdgeKey) string

// Walk performs an iterative frontier traversal from start. The visited set
// holds edge keys, not node identifiers: an edge contributes to the result at
// most once, and a node is copied into the result the first time any edge
// reaches it. Edge gating makes the walk terminate on cyclic graphs with cost
// O(edges traversed).
func Walk(g *Graph, start string, incident IncidentFunc, endpoint EndpointFunc) *Graph {
	out := New()
	if n, ok := g.Nodes[start]; ok {
		out.AddNode(n)
	}

	visited := make(map[EdgeKey]bool)
	queue := append([]EdgeKey(nil), incident(start)...)

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if visited[k] {
			continue
		}
		visited[k] = true

		if n, ok := g.Nodes[k.From]; ok {
			out.Nodes[k.From] = n
		}
		if n, ok := g.Nodes[k.To]; ok {
			out.Nodes[k.To] = n
		}
		out.Edges[k] = g.Edges[k]

		queue = append(queue, incident(endpoint(k))...)
	}
	return out
}

// ConnectsTo returns the backward closure around id: every node and edge that
// transitively leads into id.
func ConnectsTo(g *Graph, id string) *Graph {
	in := indexBy(g, func(k EdgeKey) string { return k.To })
	return Walk(g, id,
		func(n string) []EdgeKey { return in[n] },
		func(k EdgeKey) string { return k.From })
}

// ReachableFrom returns the forward closure around id: every node and edge
// that id transitively leads to.
func ReachableFrom(g *Graph, id string) *Graph {
	out := indexBy(g, func(k EdgeKey) string { return k.From })
	return Walk(g, id,
		func(n string) []EdgeKey { return out[n] },
		func(k EdgeKey) string { return k.To })
}

// indexBy groups edge keys by one endpoint, sorted for deterministic
// traversal order.
func indexBy(g *Graph, by func(EdgeKey) string) map[string][]EdgeKey {
	idx := make(map[string][]EdgeKey)
	for k := range g.Edges {
		idx[by(k)] = append(idx[by(k)], k)
	}
	for _, ks := range idx {
		sort.Slice(ks, func(i, j int) bool {
			if ks[i].From != ks[j].From {
				return ks[i].From < ks[j].From
			}
			return ks[i].To < ks[j].To
		})
	}
	return idx
}
