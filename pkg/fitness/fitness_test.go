package fitness

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/overlap-community-service/pkg/affinity"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
	"github.com/gilchrisn/overlap-community-service/pkg/overlap"
)

func bridgedCliques(t *testing.T) (*graph.Graph, *affinity.Model) {
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
	return g, affinity.NewModel(g, part, nil, nil)
}

func TestEvaluateHardAssignment(t *testing.T) {
	g, model := bridgedCliques(t)
	fn := NewFunction(g, model, DefaultConfig())

	// No overlap: clusters are the hard partition
	a := overlap.NewAssigner(model).Assign(1.0, 0.99, 0)
	b := fn.Evaluate(a, 1.0)

	t.Run("no inter penalty without overlap", func(t *testing.T) {
		assert.Equal(t, 0.0, b.InterPenalty)
	})

	t.Run("no fragment penalty at baseline", func(t *testing.T) {
		assert.Equal(t, 0.0, b.FragmentPenalty)
	})

	t.Run("cliques are fully cohesive", func(t *testing.T) {
		assert.InDelta(t, 1.0, b.MeanCohesion, 1e-12)
	})

	t.Run("no annotations means zero annotation term", func(t *testing.T) {
		assert.Equal(t, 0.0, b.MeanAnnotation)
	})

	t.Run("fitness sums its components", func(t *testing.T) {
		expected := b.MeanMembership + b.MeanCohesion + b.MeanAnnotation
		assert.InDelta(t, expected, b.Fitness, 1e-12)
	})
}

func TestEvaluateOverlappingAssignment(t *testing.T) {
	g, model := bridgedCliques(t)
	fn := NewFunction(g, model, DefaultConfig())

	hard := overlap.NewAssigner(model).Assign(1.0, 0.99, 0)
	wide := overlap.NewAssigner(model).Assign(1.0, 0.99, 0.3)

	hardEval := fn.Evaluate(hard, 1.0)
	wideEval := fn.Evaluate(wide, 1.0)

	t.Run("overlap brings inter penalty", func(t *testing.T) {
		assert.Equal(t, 0.0, hardEval.InterPenalty)
		assert.Greater(t, wideEval.InterPenalty, 0.0)
	})

	t.Run("overlap dilutes cohesion", func(t *testing.T) {
		// The bridge endpoints join a clique they barely touch
		assert.Less(t, wideEval.MeanCohesion, hardEval.MeanCohesion)
	})

	t.Run("score matches evaluate", func(t *testing.T) {
		assert.Equal(t, wideEval.Fitness, fn.Score(wide, 1.0))
	})
}

func TestLambdaWeights(t *testing.T) {
	g, model := bridgedCliques(t)
	wide := overlap.NewAssigner(model).Assign(1.0, 0.99, 0.3)

	relaxed := NewFunction(g, model, Config{LambdaInter: 0, LambdaFragment: 0})
	strict := NewFunction(g, model, Config{LambdaInter: 10, LambdaFragment: 0})

	assert.Greater(t, relaxed.Score(wide, 1.0), strict.Score(wide, 1.0))
}

// randomWeightedGraph builds a multi-cluster graph with irregular weights,
// where float accumulation order would show through any nondeterminism
func randomWeightedGraph(t *testing.T, seed int64) (*graph.Graph, *graph.Partition) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g := graph.NewGraph()

	const n = 42
	nodes := make([]string, n)
	clusters := make(map[int][]string)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("n%02d", i)
		g.AddNode(nodes[i])
		clusters[i%6] = append(clusters[i%6], nodes[i])
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < 0.25 {
				require.NoError(t, g.AddEdge(nodes[i], nodes[j], 0.1+rng.Float64()))
			}
		}
	}

	part, err := graph.NewPartition(clusters)
	require.NoError(t, err)
	return g, part
}

func TestScoreDeterministicOnRandomWeights(t *testing.T) {
	g, part := randomWeightedGraph(t, 7)
	model := affinity.NewModel(g, part, nil, nil)
	fn := NewFunction(g, model, DefaultConfig())
	a := overlap.NewAssigner(model).Assign(0.6, 0.2, 0.1)

	t.Run("repeated calls are bit-identical", func(t *testing.T) {
		first := fn.Evaluate(a, 0.6)
		for i := 0; i < 100; i++ {
			require.Equal(t, first, fn.Evaluate(a, 0.6))
		}
	})

	t.Run("rebuilt model scores identically", func(t *testing.T) {
		g2, part2 := randomWeightedGraph(t, 7)
		model2 := affinity.NewModel(g2, part2, nil, nil)
		fn2 := NewFunction(g2, model2, DefaultConfig())
		a2 := overlap.NewAssigner(model2).Assign(0.6, 0.2, 0.1)

		require.Equal(t, fn.Evaluate(a, 0.6), fn2.Evaluate(a2, 0.6))
	})
}

func TestFragmentPenaltyBaseline(t *testing.T) {
	// A partition that already contains singletons should not be punished
	// for them again
	g := graph.NewGraph()
	require.NoError(t, g.AddEdge("a", "b", 1.0))
	require.NoError(t, g.AddEdge("a", "c", 1.0))
	g.AddNode("d")

	part, err := graph.NewPartition(map[int][]string{
		0: {"a", "b", "c"},
		1: {"d"},
	})
	require.NoError(t, err)

	model := affinity.NewModel(g, part, nil, nil)
	fn := NewFunction(g, model, DefaultConfig())

	a := overlap.NewAssigner(model).Assign(1.0, 0.99, 0)
	b := fn.Evaluate(a, 1.0)
	assert.Equal(t, 0.0, b.FragmentPenalty)
}
