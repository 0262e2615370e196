// Package dag holds the model dependency graph consumed by impact analysis.
// The graph is built once from project metadata and is read-only afterwards.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed dependency graph of models. An edge parent -> child
// means child reads from parent (child is a downstream consumer of parent).
type Graph struct {
	nodes   map[string]struct{}
	edges   map[string][]string // parent -> children (consumers)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]struct{}),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a model to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = struct{}{}
		g.edges[id] = []string{}
		g.parents[id] = []string{}
	}
}

// AddEdge records that child consumes parent. Both nodes must exist.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// HasNode reports whether a model is present in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Consumers returns the direct downstream consumers of a model, sorted.
func (g *Graph) Consumers(id string) []string {
	out := append([]string(nil), g.edges[id]...)
	sort.Strings(out)
	return out
}

// Dependencies returns the direct upstream dependencies of a model, sorted.
func (g *Graph) Dependencies(id string) []string {
	out := append([]string(nil), g.parents[id]...)
	sort.Strings(out)
	return out
}

// TransitiveConsumers returns every model reachable downstream of id, sorted.
// A visited set guards against cycles, so the walk terminates on any input.
func (g *Graph) TransitiveConsumers(id string) []string {
	visited := map[string]bool{id: true}
	var out []string

	queue := append([]string(nil), g.edges[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		out = append(out, next)
		queue = append(queue, g.edges[next]...)
	}

	sort.Strings(out)
	return out
}

// Nodes returns all model IDs, sorted for deterministic output.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of models in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
