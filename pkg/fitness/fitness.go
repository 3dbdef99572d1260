// Package fitness scores a full overlapping assignment with a single
// scalar to maximize: structural and annotation quality minus penalties
// for cross-cluster leakage and fragmentation.
package fitness

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/overlap-community-service/pkg/affinity"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
	"github.com/gilchrisn/overlap-community-service/pkg/overlap"
)

// Config holds the fixed penalty weights. These are pipeline configuration,
// not searched by the optimizer.
type Config struct {
	LambdaInter    float64 `json:"lambda_inter"`
	LambdaFragment float64 `json:"lambda_fragment"`
}

// DefaultConfig returns the standard penalty weights
func DefaultConfig() Config {
	return Config{
		LambdaInter:    1.0,
		LambdaFragment: 0.5,
	}
}

// singletonSize is the cluster size at or below which a cluster counts as
// fragmented
const singletonSize = 1

// Function evaluates assignments against a fixed network and affinity
// model. The hard partition's own small-cluster fraction is the baseline
// for the fragmentation penalty.
type Function struct {
	g             *graph.Graph
	model         *affinity.Model
	cfg           Config
	baselineSmall float64
}

// Breakdown exposes the fitness components for reporting
type Breakdown struct {
	MeanMembership  float64 `json:"mean_membership"`
	MeanCohesion    float64 `json:"mean_cohesion"`
	MeanAnnotation  float64 `json:"mean_annotation"`
	InterPenalty    float64 `json:"inter_penalty"`
	FragmentPenalty float64 `json:"fragment_penalty"`
	Fitness         float64 `json:"fitness"`
}

// NewFunction creates a fitness function bound to a network and model
func NewFunction(g *graph.Graph, model *affinity.Model, cfg Config) *Function {
	return &Function{
		g:             g,
		model:         model,
		cfg:           cfg,
		baselineSmall: model.Partition().SmallClusterFraction(singletonSize),
	}
}

// Score computes the fitness of an assignment produced at the given alpha.
// Higher is better.
func (f *Function) Score(a *overlap.Assignment, alpha float64) float64 {
	return f.Evaluate(a, alpha).Fitness
}

// Evaluate computes the fitness and its components. Accumulation follows
// ascending cluster ID so repeated calls on the same assignment are
// bit-identical; float addition over map order would not be.
func (f *Function) Evaluate(a *overlap.Assignment, alpha float64) Breakdown {
	clusters := a.Clusters()
	ids := make([]int, 0, len(clusters))
	for id := range clusters {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var (
		membershipSum float64
		cohesionSum   float64
		annotationSum float64
		totalAssigned int
		numClusters   int
		numSmall      int
	)

	for _, cluster := range ids {
		nodes := clusters[cluster]
		size := len(nodes)
		if size == 0 {
			continue
		}
		numClusters++
		if size <= singletonSize {
			numSmall++
		}
		totalAssigned += size

		memberships := make([]float64, 0, size)
		annotations := make([]float64, 0, size)
		for _, node := range nodes {
			memberships = append(memberships, f.model.Membership(node, cluster, alpha))
			annotations = append(annotations, f.model.AnnotationScore(node, cluster))
		}

		intraEdges := 0
		for i := 0; i < size; i++ {
			for j := i + 1; j < size; j++ {
				if f.g.HasEdge(nodes[i], nodes[j]) {
					intraEdges++
				}
			}
		}
		cohesion := 0.0
		if possible := size * (size - 1) / 2; possible > 0 {
			cohesion = float64(intraEdges) / float64(possible)
		}

		// Size-weighted sums: larger clusters contribute proportionally
		membershipSum += stat.Mean(memberships, nil) * float64(size)
		annotationSum += stat.Mean(annotations, nil) * float64(size)
		cohesionSum += cohesion * float64(size)
	}

	if totalAssigned == 0 {
		return Breakdown{Fitness: 0}
	}

	b := Breakdown{
		MeanMembership:  membershipSum / float64(totalAssigned),
		MeanCohesion:    cohesionSum / float64(totalAssigned),
		MeanAnnotation:  annotationSum / float64(totalAssigned),
		InterPenalty:    f.interPenalty(a),
		FragmentPenalty: f.fragmentPenalty(numClusters, numSmall),
	}
	b.Fitness = b.MeanMembership + b.MeanCohesion + b.MeanAnnotation -
		f.cfg.LambdaInter*b.InterPenalty -
		f.cfg.LambdaFragment*b.FragmentPenalty
	return b
}

// interPenalty measures edge weight crossing cluster boundaries relative to
// the total edge weight incident on overlapping nodes. Granting many
// secondary memberships that still leak most of their weight outward is
// what gets penalized; a purely hard assignment scores 0 here.
func (f *Function) interPenalty(a *overlap.Assignment) float64 {
	clusterNodes := a.Clusters()

	var crossing, incident float64
	for _, node := range a.Nodes() {
		memberships := a.Memberships[node]
		if len(memberships) < 2 {
			continue
		}
		deg := f.g.Degree(node)
		for _, m := range memberships {
			// Walk the cluster's sorted member list; summing over the
			// neighbor map would make the total order-dependent
			intra := 0.0
			for _, member := range clusterNodes[m.Cluster] {
				intra += f.g.EdgeWeight(node, member)
			}
			crossing += deg - intra
			incident += deg
		}
	}

	if incident == 0 {
		return 0.0
	}
	return crossing / incident
}

// fragmentPenalty is the excess small-cluster fraction over the hard
// partition's own baseline
func (f *Function) fragmentPenalty(numClusters, numSmall int) float64 {
	if numClusters == 0 {
		return 1.0
	}
	excess := float64(numSmall)/float64(numClusters) - f.baselineSmall
	if excess < 0 {
		return 0.0
	}
	return excess
}
