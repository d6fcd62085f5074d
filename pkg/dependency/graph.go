package dependency

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/manifest"
)

// Node is a package in the dependency graph.
type Node struct {
	// ID is the package name, unique within a graph.
	ID string
	// ManifestPath is the absolute path of the package manifest.
	ManifestPath string
	// Group is the root dependency group through which the package was first reached.
	// It is empty for the root.
	Group manifest.Group
	// Dependencies are the IDs this node declares local dependencies on, in declaration order.
	Dependencies []string
	// Dependents are the IDs that declare a local dependency on this node.
	Dependents []string
}

// IsRoot reports whether the node is the root package.
func (n *Node) IsRoot() bool {
	return n.Group == ""
}

// Graph is a directed graph of packages. An edge A -> B means A declares a local dependency on B.
type Graph struct {
	// Root is the ID of the package the graph was built from, if any.
	Root  string
	Nodes map[string]*Node
	Roots []string
	order []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode adds a node. Adding an ID twice fails with ErrDuplicateNode.
func (g *Graph) AddNode(node *Node) error {
	if node == nil || node.ID == "" {
		return fmt.Errorf("%w: empty node", errUtils.ErrNodeNotFound)
	}
	if _, ok := g.Nodes[node.ID]; ok {
		return fmt.Errorf("%w: %s", errUtils.ErrDuplicateNode, node.ID)
	}
	g.Nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return nil
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// GetNodeData returns the node with the given id.
func (g *Graph) GetNodeData(id string) (*Node, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUtils.ErrNodeNotFound, id)
	}
	return node, nil
}

// AddDependency adds the edge fromID -> toID. Repeated edges are ignored.
func (g *Graph) AddDependency(fromID, toID string) error {
	from, ok := g.Nodes[fromID]
	if !ok {
		return fmt.Errorf("%w: %s", errUtils.ErrNodeNotFound, fromID)
	}
	to, ok := g.Nodes[toID]
	if !ok {
		return fmt.Errorf("%w: %s", errUtils.ErrNodeNotFound, toID)
	}
	if contains(from.Dependencies, toID) {
		return nil
	}
	from.Dependencies = append(from.Dependencies, toID)
	to.Dependents = append(to.Dependents, fromID)
	return nil
}

// DependenciesOf returns every node reachable from id, dependencies before their dependents,
// without duplicates and without id itself.
func (g *Graph) DependenciesOf(id string) ([]string, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUtils.ErrNodeNotFound, id)
	}

	visited := map[string]bool{id: true}
	var result []string
	var visit func(n *Node)
	visit = func(n *Node) {
		for _, depID := range n.Dependencies {
			if visited[depID] {
				continue
			}
			visited[depID] = true
			visit(g.Nodes[depID])
			result = append(result, depID)
		}
	}
	visit(node)
	return result, nil
}

// RootDependencies returns the nodes reachable from the root, dependencies first.
func (g *Graph) RootDependencies() ([]*Node, error) {
	ids, err := g.DependenciesOf(g.Root)
	if err != nil {
		return nil, err
	}
	return lo.Map(ids, func(id string, _ int) *Node {
		return g.Nodes[id]
	}), nil
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// IDs returns node IDs in insertion order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.order...)
}

// IdentifyRoots records the nodes that nothing depends on.
func (g *Graph) IdentifyRoots() {
	g.Roots = g.Roots[:0]
	for _, id := range g.order {
		if len(g.Nodes[id].Dependents) == 0 {
			g.Roots = append(g.Roots, id)
		}
	}
}

// HasCycles reports whether the graph contains a cycle and returns one as a path
// whose first and last elements are the same node.
func (g *Graph) HasCycles() (bool, []string) {
	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(g.Nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colour[id] = grey
		stack = append(stack, id)
		for _, depID := range g.Nodes[id].Dependencies {
			switch colour[depID] {
			case grey:
				cycle = cyclePath(stack, depID)
				return true
			case white:
				if visit(depID) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		colour[id] = black
		return false
	}

	for _, id := range g.order {
		if colour[id] == white && visit(id) {
			return true, cycle
		}
	}
	return false, nil
}

// cyclePath cuts the cycle ending at id out of a traversal stack.
func cyclePath(stack []string, id string) []string {
	for i, s := range stack {
		if s == id {
			path := append([]string(nil), stack[i:]...)
			return append(path, id)
		}
	}
	return []string{id, id}
}

// FormatCycle renders a cycle path as "a -> b -> a".
func FormatCycle(path []string) string {
	return strings.Join(path, " -> ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
