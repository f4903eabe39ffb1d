package feature

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is a directed graph of keyed values that sorts topologically with
// Kahn's algorithm. Among ready nodes the smallest key goes first, so the
// order is deterministic.
type Graph[T any] struct {
	nodes    map[string]T
	edges    map[string]map[string]bool
	inDegree map[string]int
}

// NewGraph creates an empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:    make(map[string]T),
		edges:    make(map[string]map[string]bool),
		inDegree: make(map[string]int),
	}
}

// AddNode adds a node or replaces its value.
func (g *Graph[T]) AddNode(key string, value T) {
	g.nodes[key] = value
	if _, ok := g.inDegree[key]; !ok {
		g.inDegree[key] = 0
	}
}

// AddEdge records that from must come before to. Both nodes must exist.
func (g *Graph[T]) AddEdge(from, to string) error {
	if !g.HasNode(from) {
		return fmt.Errorf("node %q not found", from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("node %q not found", to)
	}
	if from == to {
		return fmt.Errorf("self-edge not allowed: %q", from)
	}
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]bool)
	}
	if !g.edges[from][to] {
		g.edges[from][to] = true
		g.inDegree[to]++
	}
	return nil
}

// HasNode returns true if the graph contains key.
func (g *Graph[T]) HasNode(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

// Sort returns values in topological order. A cycle is reported with the
// keys of the nodes that could not be placed.
func (g *Graph[T]) Sort() ([]T, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.inDegree))
	var ready []string
	for k, v := range g.inDegree {
		inDegree[k] = v
		if v == 0 {
			ready = append(ready, k)
		}
	}

	result := make([]T, 0, len(g.nodes))
	for len(ready) > 0 {
		slices.Sort(ready)
		key := ready[0]
		ready = ready[1:]
		result = append(result, g.nodes[key])
		for next := range g.edges[key] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var stuck []string
		for k, v := range inDegree {
			if v > 0 {
				stuck = append(stuck, k)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("circular dependency among %s", strings.Join(stuck, ", "))
	}
	return result, nil
}
