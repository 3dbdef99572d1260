package affinity

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/overlap-community-service/pkg/annotation"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
)

// buildBridgedCliques creates two 5-cliques joined by a single bridge edge
// a0-b0, with each clique as its own cluster
func buildBridgedCliques(t *testing.T) (*graph.Graph, *graph.Partition) {
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
	return g, part
}

func TestStructuralScoreBridgedCliques(t *testing.T) {
	g, part := buildBridgedCliques(t)
	model := NewModel(g, part, nil, nil)

	t.Run("interior clique member", func(t *testing.T) {
		// a1: all 4 edges stay home, tight neighborhood
		assert.InDelta(t, 0.25, model.StructuralScore("a1", 0), 1e-12)
	})

	t.Run("bridge endpoint home", func(t *testing.T) {
		// a0: 4 of 5 edges stay home, one leaks across the bridge
		assert.InDelta(t, 0.15, model.StructuralScore("a0", 0), 1e-12)
	})

	t.Run("bridge endpoint opposite cluster", func(t *testing.T) {
		assert.InDelta(t, -0.15, model.StructuralScore("a0", 1), 1e-12)
	})

	t.Run("symmetry across the bridge", func(t *testing.T) {
		assert.InDelta(t, model.StructuralScore("a0", 0), model.StructuralScore("b0", 1), 1e-12)
		assert.InDelta(t, model.StructuralScore("a0", 1), model.StructuralScore("b0", 0), 1e-12)
	})

	t.Run("interior member has no cross candidates", func(t *testing.T) {
		assert.Equal(t, []int{0}, model.CandidateClusters("a1"))
		assert.Equal(t, []int{0, 1}, model.CandidateClusters("a0"))
	})
}

func TestStructuralScoreIsolatedNode(t *testing.T) {
	g := graph.NewGraph()
	g.AddNode("lonely")
	require.NoError(t, g.AddEdge("a", "b", 1.0))

	part, err := graph.NewPartition(map[int][]string{
		0: {"a", "b"},
		1: {"lonely"},
	})
	require.NoError(t, err)

	model := NewModel(g, part, nil, nil)
	assert.Equal(t, 0.0, model.StructuralScore("lonely", 1))
	assert.Equal(t, 0.0, model.StructuralScore("lonely", 0))
}

func TestAnnotationScore(t *testing.T) {
	g, part := buildBridgedCliques(t)

	sets := make(annotation.Sets)
	for i := 0; i < 5; i++ {
		sets.Add(fmt.Sprintf("a%d", i), "GO:cliqueA")
		sets.Add(fmt.Sprintf("b%d", i), "GO:cliqueB")
	}
	importance := annotation.BuildTermImportance(part, sets)
	model := NewModel(g, part, sets, importance)

	t.Run("matching terms score positive", func(t *testing.T) {
		assert.Greater(t, model.AnnotationScore("a1", 0), 0.0)
	})

	t.Run("foreign cluster scores zero", func(t *testing.T) {
		// a0's term is absent from cluster 1
		assert.Equal(t, 0.0, model.AnnotationScore("a0", 1))
	})

	t.Run("unannotated node scores zero", func(t *testing.T) {
		empty := NewModel(g, part, nil, nil)
		assert.Equal(t, 0.0, empty.AnnotationScore("a1", 0))
	})
}

func TestMembershipAlphaBlend(t *testing.T) {
	g, part := buildBridgedCliques(t)
	sets := make(annotation.Sets)
	for i := 0; i < 5; i++ {
		sets.Add(fmt.Sprintf("a%d", i), "GO:cliqueA")
	}
	importance := annotation.BuildTermImportance(part, sets)
	model := NewModel(g, part, sets, importance)

	t.Run("alpha one is pure structure", func(t *testing.T) {
		for _, node := range part.Nodes() {
			for _, c := range model.CandidateClusters(node) {
				assert.InDelta(t, model.StructuralScore(node, c), model.Membership(node, c, 1.0), 1e-12)
			}
		}
	})

	t.Run("alpha zero is pure annotation", func(t *testing.T) {
		for _, node := range part.Nodes() {
			for _, c := range model.CandidateClusters(node) {
				assert.InDelta(t, model.AnnotationScore(node, c), model.Membership(node, c, 0.0), 1e-12)
			}
		}
	})

	t.Run("alpha clipped into unit range", func(t *testing.T) {
		assert.InDelta(t, model.Membership("a1", 0, 1.0), model.Membership("a1", 0, 3.5), 1e-12)
		assert.InDelta(t, model.Membership("a1", 0, 0.0), model.Membership("a1", 0, -2.0), 1e-12)
	})
}

// randomAnnotatedGraph builds a random graph plus random annotations and a
// random hard partition, all from one seed
func randomAnnotatedGraph(seed int64) (*graph.Graph, *graph.Partition, annotation.Sets) {
	rng := rand.New(rand.NewSource(seed))
	n := 6 + rng.Intn(20)

	g := graph.NewGraph()
	nodes := make([]string, n)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("n%02d", i)
		g.AddNode(nodes[i])
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < 0.3 {
				g.AddEdge(nodes[i], nodes[j], 0.1+rng.Float64())
			}
		}
	}

	numClusters := 2 + rng.Intn(4)
	clusters := make(map[int][]string)
	for _, node := range nodes {
		c := rng.Intn(numClusters)
		clusters[c] = append(clusters[c], node)
	}
	part, err := graph.NewPartition(clusters)
	if err != nil {
		panic(err)
	}

	sets := make(annotation.Sets)
	terms := []string{"GO:01", "GO:02", "GO:03", "GO:04"}
	for _, node := range nodes {
		for _, term := range terms {
			if rng.Float64() < 0.4 {
				sets.Add(node, term)
			}
		}
	}
	return g, part, sets
}

func TestMembershipBoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("all scores stay within [-1, 1]", prop.ForAll(
		func(seed int64, alpha float64) bool {
			g, part, sets := randomAnnotatedGraph(seed)
			importance := annotation.BuildTermImportance(part, sets)
			model := NewModel(g, part, sets, importance)

			for _, node := range part.Nodes() {
				for _, c := range model.CandidateClusters(node) {
					s := model.StructuralScore(node, c)
					if s < -1 || s > 1 {
						return false
					}
					a := model.AnnotationScore(node, c)
					if a < -1 || a > 1 {
						return false
					}
					combined := model.Membership(node, c, alpha)
					if combined < -1 || combined > 1 {
						return false
					}
				}
			}
			return true
		},
		gen.Int64Range(0, 1<<30),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestModelDeterministicAcrossRebuilds(t *testing.T) {
	// Irregular weights and annotations: cached sums must not depend on
	// map iteration order, so two independently built models agree exactly
	build := func() []MembershipRecord {
		g, part, sets := randomAnnotatedGraph(99)
		importance := annotation.BuildTermImportance(part, sets)
		return NewModel(g, part, sets, importance).Records(0.37)
	}

	first := build()
	for i := 0; i < 20; i++ {
		require.Equal(t, first, build())
	}
}

func TestRecordsDeterministic(t *testing.T) {
	g, part := buildBridgedCliques(t)
	model := NewModel(g, part, nil, nil)

	first := model.Records(0.7)
	second := model.Records(0.7)
	require.Equal(t, first, second)

	// Ten partitioned nodes, bridge endpoints carry one extra candidate each
	assert.Len(t, first, 12)
}
