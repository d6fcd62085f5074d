package dependency

import (
	"errors"
	"fmt"

	errUtils "github.com/cloudposse/link-install/errors"
)

// ErrGraphAlreadyBuilt is returned when a finalized builder is modified.
var ErrGraphAlreadyBuilt = errors.New("graph already built")

// GraphBuilder assembles a graph and validates it once.
type GraphBuilder struct {
	graph *Graph
	// Track if build has been called to prevent modifications after build.
	built bool
}

// NewBuilder creates a new graph builder.
func NewBuilder() *GraphBuilder {
	return &GraphBuilder{
		graph: NewGraph(),
		built: false,
	}
}

// AddNode adds a node unless one with the same ID exists. The first node added for an ID wins.
// It reports whether the node was added.
func (b *GraphBuilder) AddNode(node *Node) (bool, error) {
	if b.built {
		return false, ErrGraphAlreadyBuilt
	}
	if b.graph.HasNode(node.ID) {
		return false, nil
	}
	if err := b.graph.AddNode(node); err != nil {
		return false, err
	}
	return true, nil
}

// AddDependency creates a dependency relationship between two nodes.
// The fromID depends on toID (fromID -> toID).
func (b *GraphBuilder) AddDependency(fromID, toID string) error {
	if b.built {
		return ErrGraphAlreadyBuilt
	}

	if err := b.graph.AddDependency(fromID, toID); err != nil {
		return fmt.Errorf("add dependency from=%s to=%s: %w", fromID, toID, err)
	}
	return nil
}

// HasNode reports whether the graph under construction contains id.
func (b *GraphBuilder) HasNode(id string) bool {
	return b.graph.HasNode(id)
}

// Build finalizes the graph construction and returns the built graph.
func (b *GraphBuilder) Build() (*Graph, error) {
	if b.built {
		return nil, ErrGraphAlreadyBuilt
	}

	if hasCycle, cycle := b.graph.HasCycles(); hasCycle {
		return nil, errUtils.Build(errUtils.ErrCircularDependency).
			WithCause(errors.New(FormatCycle(cycle))).
			WithHint("Local packages cannot depend on each other in a loop; remove one of the local references").
			Err()
	}

	b.graph.IdentifyRoots()

	b.built = true
	return b.graph, nil
}
