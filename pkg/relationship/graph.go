// Package relationship provides the directed affinity graph between agents.
//
// Edges are keyed by ordered agent pairs, since trust and affinity are
// asymmetric: A's disposition toward B is independent of B's toward A.
package relationship

import "sync"

// Edge is one directed relationship between two agents.
type Edge struct {
	// From is the agent holding the disposition.
	From string

	// To is the agent the disposition is toward.
	To string

	// Affinity is the directional disposition in [-1, 1].
	Affinity float64

	// Interactions is the number of recorded interactions on this edge.
	Interactions int
}

// pairKey identifies one ordered edge.
type pairKey struct {
	from string
	to   string
}

// Graph tracks affinity between agents.
//
// Edges are created lazily on first interaction and never deleted: the
// history of a relationship is permanent within a simulation run. The graph
// is shared mutable state across agents, so all access is internally
// synchronized; reads proceed concurrently.
type Graph struct {
	mu    sync.RWMutex
	edges map[pairKey]*Edge
}

// NewGraph creates an empty relationship graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[pairKey]*Edge)}
}

// RecordInteraction applies an affinity delta to the directed edge from one
// agent to another, creating the edge (affinity 0, count 0) if absent.
//
// The resulting affinity is clamped into [-1, 1] and the interaction count
// is incremented. Returns the edge's new affinity.
func (g *Graph) RecordInteraction(from, to string, affinityDelta float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := pairKey{from: from, to: to}
	edge, ok := g.edges[key]
	if !ok {
		edge = &Edge{From: from, To: to}
		g.edges[key] = edge
	}

	edge.Affinity = clampAffinity(edge.Affinity + affinityDelta)
	edge.Interactions++
	return edge.Affinity
}

// Affinity returns one agent's disposition toward another.
//
// An absent edge returns exactly 0: agents with no history start neutral.
func (g *Graph) Affinity(from, to string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if edge, ok := g.edges[pairKey{from: from, to: to}]; ok {
		return edge.Affinity
	}
	return 0
}

// Interactions returns the interaction count for a directed pair, or 0 for
// an absent edge.
func (g *Graph) Interactions(from, to string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if edge, ok := g.edges[pairKey{from: from, to: to}]; ok {
		return edge.Interactions
	}
	return 0
}

// Edges returns copies of all edges originating from the given agent.
func (g *Graph) Edges(from string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for key, edge := range g.edges {
		if key.from == from {
			edges = append(edges, *edge)
		}
	}
	return edges
}

// Seed restores one edge from persisted state, replacing any existing edge
// for the pair. Affinity is clamped into [-1, 1].
func (g *Graph) Seed(from, to string, affinity float64, interactions int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[pairKey{from: from, to: to}] = &Edge{
		From:         from,
		To:           to,
		Affinity:     clampAffinity(affinity),
		Interactions: interactions,
	}
}

// clampAffinity clamps a value into [-1, 1].
func clampAffinity(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
