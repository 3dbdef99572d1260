package overlap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/overlap-community-service/pkg/affinity"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
)

// bridgedCliques builds two 5-cliques joined by edge a0-b0. With pure
// structure (alpha=1) the bridge endpoints score 0.15 at home and -0.15 in
// the opposite cluster; interior members score 0.25 at home.
func bridgedCliques(t *testing.T) *affinity.Model {
	t.Helper()
	g := graph.NewGraph()
	for _, prefix := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			for j := i + 1; j < 5; j++ {
				require.NoError(t, g.AddEdge(
					fmt.Sprintf("%s%d", prefix, i),
					fmt.Sprintf("%s%d", prefix, j), 1.0))
			}
		}
	}
	require.NoError(t, g.AddEdge("a0", "b0", 1.0))

	part, err := graph.NewPartition(map[int][]string{
		0: {"a0", "a1", "a2", "a3", "a4"},
		1: {"b0", "b1", "b2", "b3", "b4"},
	})
	require.NoError(t, err)
	return affinity.NewModel(g, part, nil, nil)
}

func TestAssignHomeAlwaysKept(t *testing.T) {
	model := bridgedCliques(t)
	assigner := NewAssigner(model)

	// Thresholds no candidate can meet: assignment collapses to the hard
	// partition
	a := assigner.Assign(1.0, 0.99, 0)

	for _, node := range a.Nodes() {
		home, ok := model.Partition().Home(node)
		require.True(t, ok)
		assert.True(t, a.Contains(node, home), "node %s lost its home cluster", node)
		assert.Len(t, a.Memberships[node], 1)
	}
	assert.Equal(t, 0, a.OverlapCount())
}

func TestAssignAcceptThreshold(t *testing.T) {
	model := bridgedCliques(t)
	assigner := NewAssigner(model)

	t.Run("high threshold admits nobody", func(t *testing.T) {
		a := assigner.Assign(1.0, 0.5, 0)
		assert.Equal(t, 0, a.OverlapCount())
	})

	t.Run("threshold at a cross score admits it", func(t *testing.T) {
		// a0 scores exactly -0.15 in cluster 1; acceptance is >=
		a := assigner.Assign(1.0, -0.15, 0)
		assert.True(t, a.Contains("a0", 1))
		assert.True(t, a.Contains("b0", 0))
		assert.Equal(t, 2, a.OverlapCount())
	})
}

func TestAssignTransferThreshold(t *testing.T) {
	model := bridgedCliques(t)
	assigner := NewAssigner(model)

	t.Run("window covering the bridge gap", func(t *testing.T) {
		// Bridge endpoints: best 0.15 at home, -0.15 across, gap 0.3.
		// Interior members have no cross candidates at all.
		a := assigner.Assign(1.0, 0.99, 0.3)

		assert.True(t, a.Contains("a0", 1))
		assert.True(t, a.Contains("b0", 0))
		assert.Equal(t, 2, a.OverlapCount())
		assert.False(t, a.Contains("a1", 1))
	})

	t.Run("window below the gap adds nobody", func(t *testing.T) {
		a := assigner.Assign(1.0, 0.99, 0.29)
		assert.Equal(t, 0, a.OverlapCount())
	})

	t.Run("zero disables the transfer rule", func(t *testing.T) {
		a := assigner.Assign(1.0, 0.99, 0)
		assert.Equal(t, 0, a.OverlapCount())
	})
}

func TestAssignTransferMonotone(t *testing.T) {
	model := bridgedCliques(t)
	assigner := NewAssigner(model)

	// Widening the transfer window can only add memberships
	prev := assigner.Assign(1.0, 0.99, 0)
	for _, window := range []float64{0.1, 0.3, 0.5, 1.0} {
		next := assigner.Assign(1.0, 0.99, window)
		for _, node := range prev.Nodes() {
			for _, m := range prev.Memberships[node] {
				assert.True(t, next.Contains(node, m.Cluster),
					"membership (%s, %d) lost at window %f", node, m.Cluster, window)
			}
		}
		prev = next
	}
}

func TestAssignmentAccessors(t *testing.T) {
	model := bridgedCliques(t)
	a := NewAssigner(model).Assign(1.0, 0.99, 0.3)

	t.Run("memberships sorted by score", func(t *testing.T) {
		for _, node := range a.Nodes() {
			ms := a.Memberships[node]
			for i := 1; i < len(ms); i++ {
				assert.GreaterOrEqual(t, ms[i-1].Score, ms[i].Score)
			}
		}
	})

	t.Run("clusters inverted and sorted", func(t *testing.T) {
		clusters := a.Clusters()
		require.Len(t, clusters, 2)
		assert.Equal(t, []string{"a0", "a1", "a2", "a3", "a4", "b0"}, clusters[0])
		assert.Equal(t, []string{"a0", "b0", "b1", "b2", "b3", "b4"}, clusters[1])
	})

	t.Run("contains", func(t *testing.T) {
		assert.True(t, a.Contains("a0", 0))
		assert.True(t, a.Contains("a0", 1))
		assert.False(t, a.Contains("a1", 1))
		assert.False(t, a.Contains("unknown", 0))
	})
}
