package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/manifest"
)

func newTestGraph(t *testing.T, ids []string, edges [][2]string) *Graph {
	t.Helper()
	graph := NewGraph()
	for _, id := range ids {
		require.NoError(t, graph.AddNode(&Node{ID: id, Group: manifest.GroupDependencies}))
	}
	for _, e := range edges {
		require.NoError(t, graph.AddDependency(e[0], e[1]))
	}
	return graph
}

func TestGraph_DependenciesOf(t *testing.T) {
	tests := []struct {
		name   string
		ids    []string
		edges  [][2]string
		of     string
		expect []string
	}{
		{
			name:   "chain",
			ids:    []string{"a", "b", "c"},
			edges:  [][2]string{{"a", "b"}, {"b", "c"}},
			of:     "a",
			expect: []string{"c", "b"},
		},
		{
			name:   "diamond is deduplicated",
			ids:    []string{"a", "b", "c", "d"},
			edges:  [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			of:     "a",
			expect: []string{"d", "b", "c"},
		},
		{
			name:   "leaf",
			ids:    []string{"a", "b"},
			edges:  [][2]string{{"a", "b"}},
			of:     "b",
			expect: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := newTestGraph(t, tt.ids, tt.edges)
			deps, err := graph.DependenciesOf(tt.of)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, deps)
		})
	}
}

func TestGraph_DependenciesOfUnknown(t *testing.T) {
	_, err := NewGraph().DependenciesOf("missing")
	assert.ErrorIs(t, err, errUtils.ErrNodeNotFound)
}

func TestGraph_AddNodeDuplicate(t *testing.T) {
	graph := NewGraph()
	require.NoError(t, graph.AddNode(&Node{ID: "a"}))
	assert.ErrorIs(t, graph.AddNode(&Node{ID: "a"}), errUtils.ErrDuplicateNode)
}

func TestGraph_AddDependencyUnknownNode(t *testing.T) {
	graph := newTestGraph(t, []string{"a"}, nil)
	assert.ErrorIs(t, graph.AddDependency("a", "b"), errUtils.ErrNodeNotFound)
	assert.ErrorIs(t, graph.AddDependency("b", "a"), errUtils.ErrNodeNotFound)
}

func TestGraph_AddDependencyIgnoresRepeats(t *testing.T) {
	graph := newTestGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})
	assert.Equal(t, []string{"b"}, graph.Nodes["a"].Dependencies)
	assert.Equal(t, []string{"a"}, graph.Nodes["b"].Dependents)
}

func TestGraph_HasCycles(t *testing.T) {
	graph := newTestGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "b"}})
	hasCycle, cycle := graph.HasCycles()
	assert.True(t, hasCycle)
	assert.Equal(t, []string{"b", "c", "b"}, cycle)
	assert.Equal(t, "b -> c -> b", FormatCycle(cycle))

	acyclic := newTestGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	hasCycle, cycle = acyclic.HasCycles()
	assert.False(t, hasCycle)
	assert.Nil(t, cycle)
}

func TestGraph_GetNodeData(t *testing.T) {
	graph := newTestGraph(t, []string{"a"}, nil)
	node, err := graph.GetNodeData("a")
	require.NoError(t, err)
	assert.Equal(t, manifest.GroupDependencies, node.Group)

	_, err = graph.GetNodeData("b")
	assert.ErrorIs(t, err, errUtils.ErrNodeNotFound)
}

func TestGraphBuilder(t *testing.T) {
	b := NewBuilder()
	added, err := b.AddNode(&Node{ID: "a"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = b.AddNode(&Node{ID: "a", Group: manifest.GroupDevDependencies})
	require.NoError(t, err)
	assert.False(t, added)

	_, err = b.AddNode(&Node{ID: "b", Group: manifest.GroupDependencies})
	require.NoError(t, err)
	require.NoError(t, b.AddDependency("a", "b"))

	graph, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, graph.Roots)
	assert.True(t, graph.Nodes["a"].IsRoot())

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrGraphAlreadyBuilt)
	_, err = b.AddNode(&Node{ID: "c"})
	assert.ErrorIs(t, err, ErrGraphAlreadyBuilt)
}

func TestGraphBuilder_RejectsCycles(t *testing.T) {
	b := NewBuilder()
	_, _ = b.AddNode(&Node{ID: "a"})
	_, _ = b.AddNode(&Node{ID: "b"})
	require.NoError(t, b.AddDependency("a", "b"))
	require.NoError(t, b.AddDependency("b", "a"))

	_, err := b.Build()
	assert.ErrorIs(t, err, errUtils.ErrCircularDependency)
	assert.Contains(t, err.Error(), "a -> b -> a")
}
