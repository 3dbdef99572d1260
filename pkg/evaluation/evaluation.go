// Package evaluation computes descriptive quality metrics for an
// overlapping assignment. Metrics are diagnostics only: the optimizer
// never sees them, so adding or removing metrics cannot change results.
package evaluation

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/overlap-community-service/pkg/annotation"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
	"github.com/gilchrisn/overlap-community-service/pkg/overlap"
)

// Metrics holds the computed metrics. Cluster statistics are always
// present; pointer fields are nil when the metric is unavailable for the
// given inputs (no annotations, no reference, degenerate structure) rather
// than reported as a misleading zero.
type Metrics struct {
	NumClusters     int     `json:"num_clusters"`
	NumNodes        int     `json:"num_nodes"`
	OverlapCount    int     `json:"overlap_count"`
	MeanClusterSize float64 `json:"mean_cluster_size"`
	MaxClusterSize  int     `json:"max_cluster_size"`
	MinClusterSize  int     `json:"min_cluster_size"`

	IntraDensity        *float64 `json:"intra_density,omitempty"`
	InterDensity        *float64 `json:"inter_density,omitempty"`
	Conductance         *float64 `json:"conductance,omitempty"`
	OverlapModularity   *float64 `json:"overlap_modularity,omitempty"`
	AnnotationCoherence *float64 `json:"annotation_coherence,omitempty"`
	ReferenceCoherence  *float64 `json:"reference_coherence,omitempty"`
}

// Evaluator computes metrics against a fixed network, optional annotation
// sets, and an optional reference partition
type Evaluator struct {
	g         *graph.Graph
	sets      annotation.Sets
	reference *graph.Partition
	logger    zerolog.Logger
}

// NewEvaluator creates an evaluator. sets may be nil; annotation metrics
// are then reported as unavailable.
func NewEvaluator(g *graph.Graph, sets annotation.Sets, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		g:      g,
		sets:   sets,
		logger: logger.With().Str("component", "evaluation").Logger(),
	}
}

// WithReference sets a reference partition for best-match coherence
func (e *Evaluator) WithReference(ref *graph.Partition) *Evaluator {
	e.reference = ref
	return e
}

// Evaluate computes all available metrics for an assignment
func (e *Evaluator) Evaluate(a *overlap.Assignment) *Metrics {
	clusters := a.Clusters()

	m := &Metrics{
		NumClusters:  len(clusters),
		NumNodes:     len(a.Nodes()),
		OverlapCount: a.OverlapCount(),
	}

	ids := sortedClusterIDs(clusters)
	sizes := make([]float64, 0, len(ids))
	for _, id := range ids {
		sizes = append(sizes, float64(len(clusters[id])))
	}
	if len(sizes) > 0 {
		m.MeanClusterSize = stat.Mean(sizes, nil)
		minSize, maxSize := int(sizes[0]), int(sizes[0])
		for _, s := range sizes {
			if int(s) < minSize {
				minSize = int(s)
			}
			if int(s) > maxSize {
				maxSize = int(s)
			}
		}
		m.MinClusterSize = minSize
		m.MaxClusterSize = maxSize
	}

	m.IntraDensity = e.intraDensity(clusters)
	m.InterDensity = e.interDensity(a, clusters)
	m.Conductance = e.conductance(clusters)
	m.OverlapModularity = e.overlapModularity(a, clusters)
	m.AnnotationCoherence = e.annotationCoherence(clusters)
	if e.reference != nil {
		m.ReferenceCoherence = e.referenceCoherence(clusters)
	}

	e.logger.Debug().
		Int("clusters", m.NumClusters).
		Int("overlapping_nodes", m.OverlapCount).
		Msg("Computed assignment metrics")

	return m
}

// intraDensity is the mean over clusters of realized intra-cluster edge
// pairs over possible pairs. Singleton clusters are skipped; nil when no
// cluster has at least two members.
func (e *Evaluator) intraDensity(clusters map[int][]string) *float64 {
	densities := make([]float64, 0, len(clusters))
	for _, id := range sortedClusterIDs(clusters) {
		nodes := clusters[id]
		size := len(nodes)
		if size < 2 {
			continue
		}
		edges := 0
		for i := 0; i < size; i++ {
			for j := i + 1; j < size; j++ {
				if e.g.HasEdge(nodes[i], nodes[j]) {
					edges++
				}
			}
		}
		densities = append(densities, float64(edges)/float64(size*(size-1)/2))
	}
	if len(densities) == 0 {
		return nil
	}
	v := stat.Mean(densities, nil)
	return &v
}

// interDensity is the mean over distinct cluster pairs of crossing edges
// over possible cross pairs; nil with fewer than two clusters
func (e *Evaluator) interDensity(a *overlap.Assignment, clusters map[int][]string) *float64 {
	if len(clusters) < 2 {
		return nil
	}

	ids := sortedClusterIDs(clusters)

	type pairKey struct{ lo, hi int }
	crossing := make(map[pairKey]int)

	for _, node := range a.Nodes() {
		for nbr := range e.g.Neighbors(node) {
			if nbr <= node {
				continue // each undirected edge once
			}
			for _, mu := range a.Memberships[node] {
				for _, mv := range a.Memberships[nbr] {
					if mu.Cluster == mv.Cluster {
						continue
					}
					lo, hi := mu.Cluster, mv.Cluster
					if lo > hi {
						lo, hi = hi, lo
					}
					crossing[pairKey{lo, hi}]++
				}
			}
		}
	}

	densities := make([]float64, 0)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			possible := len(clusters[ids[i]]) * len(clusters[ids[j]])
			if possible == 0 {
				continue
			}
			densities = append(densities, float64(crossing[pairKey{ids[i], ids[j]}])/float64(possible))
		}
	}
	if len(densities) == 0 {
		return nil
	}
	v := stat.Mean(densities, nil)
	return &v
}

// conductance is the mean over clusters of cut weight over the smaller of
// the cluster volume and its complement volume. Clusters with zero volume
// are skipped; nil when none contribute.
func (e *Evaluator) conductance(clusters map[int][]string) *float64 {
	totalVolume := 2 * e.g.TotalWeight
	values := make([]float64, 0, len(clusters))

	for _, id := range sortedClusterIDs(clusters) {
		nodes := clusters[id]
		inside := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			inside[n] = true
		}

		var cut, volume float64
		for _, node := range nodes {
			volume += e.g.Degree(node)
			nbrs := e.g.Neighbors(node)
			keys := make([]string, 0, len(nbrs))
			for nbr := range nbrs {
				keys = append(keys, nbr)
			}
			sort.Strings(keys)
			for _, nbr := range keys {
				if !inside[nbr] {
					cut += nbrs[nbr]
				}
			}
		}

		denom := volume
		if other := totalVolume - volume; other < denom {
			denom = other
		}
		if denom <= 0 {
			continue
		}
		values = append(values, cut/denom)
	}
	if len(values) == 0 {
		return nil
	}
	v := stat.Mean(values, nil)
	return &v
}

// overlapModularity extends Newman modularity to overlapping memberships
// by splitting each node's unit of belonging equally across its clusters:
// a node with k memberships contributes 1/k per cluster. Reduces to plain
// modularity for a hard assignment. nil for an edgeless network.
func (e *Evaluator) overlapModularity(a *overlap.Assignment, clusters map[int][]string) *float64 {
	twoM := 2 * e.g.TotalWeight
	if twoM == 0 {
		return nil
	}

	belonging := make(map[string]float64, len(a.Memberships))
	for node, memberships := range a.Memberships {
		if len(memberships) > 0 {
			belonging[node] = 1.0 / float64(len(memberships))
		}
	}

	q := 0.0
	for _, id := range sortedClusterIDs(clusters) {
		nodes := clusters[id]
		for i := 0; i < len(nodes); i++ {
			for j := 0; j < len(nodes); j++ {
				u, v := nodes[i], nodes[j]
				expected := e.g.Degree(u) * e.g.Degree(v) / twoM
				q += belonging[u] * belonging[v] * (e.g.EdgeWeight(u, v) - expected)
			}
		}
	}
	q /= twoM
	return &q
}

// annotationCoherence is the mean over clusters of the mean pairwise
// Jaccard similarity between annotated members' term sets. Unannotated
// members are skipped; nil when annotations are absent or no cluster has
// two annotated members.
func (e *Evaluator) annotationCoherence(clusters map[int][]string) *float64 {
	if e.sets == nil {
		return nil
	}

	coherences := make([]float64, 0, len(clusters))
	for _, id := range sortedClusterIDs(clusters) {
		nodes := clusters[id]
		annotated := make([]annotation.TermSet, 0, len(nodes))
		for _, n := range nodes {
			if terms := e.sets.Terms(n); len(terms) > 0 {
				annotated = append(annotated, terms)
			}
		}
		if len(annotated) < 2 {
			continue
		}

		sum, pairs := 0.0, 0
		for i := 0; i < len(annotated); i++ {
			for j := i + 1; j < len(annotated); j++ {
				sum += jaccardTerms(annotated[i], annotated[j])
				pairs++
			}
		}
		coherences = append(coherences, sum/float64(pairs))
	}
	if len(coherences) == 0 {
		return nil
	}
	v := stat.Mean(coherences, nil)
	return &v
}

// referenceCoherence is the mean over predicted clusters of the best
// Jaccard overlap with any reference cluster
func (e *Evaluator) referenceCoherence(clusters map[int][]string) *float64 {
	refSets := make([]map[string]bool, 0, e.reference.NumClusters())
	for _, id := range e.reference.ClusterIDs() {
		set := make(map[string]bool)
		for _, n := range e.reference.Clusters[id] {
			set[n] = true
		}
		refSets = append(refSets, set)
	}
	if len(refSets) == 0 {
		return nil
	}

	scores := make([]float64, 0, len(clusters))
	for _, id := range sortedClusterIDs(clusters) {
		nodes := clusters[id]
		pred := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			pred[n] = true
		}
		best := 0.0
		for _, ref := range refSets {
			if j := jaccardNodes(pred, ref); j > best {
				best = j
			}
		}
		scores = append(scores, best)
	}
	if len(scores) == 0 {
		return nil
	}
	v := stat.Mean(scores, nil)
	return &v
}

// sortedClusterIDs fixes the aggregation order: float sums over map
// iteration would differ between otherwise identical runs
func sortedClusterIDs(clusters map[int][]string) []int {
	ids := make([]int, 0, len(clusters))
	for id := range clusters {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func jaccardTerms(a, b annotation.TermSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func jaccardNodes(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for n := range a {
		if b[n] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
