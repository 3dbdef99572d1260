// Package affinity scores how strongly each node belongs to each candidate
// cluster. The structural component ("permanence") measures edge retention
// inside a cluster against the best alternative cluster; the annotation
// component measures overlap with the cluster's characteristic terms. Both
// are bounded to [-1, 1] and blended by a tunable weight alpha.
package affinity

import (
	"fmt"
	"math"
	"sort"

	"github.com/gilchrisn/overlap-community-service/pkg/annotation"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
)

// Quantities holds the raw structural measurements for one (node, cluster)
// pair. They depend only on the network and the hard partition, so they are
// computed once and reused across every parameter trial.
type Quantities struct {
	Intra        float64 `json:"intra"`         // edge weight from node into the cluster
	Extra        float64 `json:"extra"`         // edge weight from node to outside the cluster
	EMax         float64 `json:"emax"`          // max edge weight from node into any single cluster
	ClusteringIn float64 `json:"clustering_in"` // clustering coefficient among intra-cluster neighbors
}

// MembershipRecord is the full scoring record for one (node, cluster) pair
type MembershipRecord struct {
	Node       string  `json:"node"`
	Cluster    int     `json:"cluster"`
	Structural float64 `json:"structural"`
	Annotation float64 `json:"annotation"`
	Combined   float64 `json:"combined"`
	Quantities Quantities
}

// Model computes per-(node, cluster) membership scores. Structural
// quantities and annotation scores are cached at construction; only the
// combination weight varies between evaluations.
type Model struct {
	g          *graph.Graph
	part       *graph.Partition
	sets       annotation.Sets
	importance *annotation.TermImportance

	quants     map[string]map[int]Quantities
	annScores  map[string]map[int]float64
	candidates map[string][]int
}

// NewModel precomputes structural quantities and annotation scores for
// every partitioned node against its candidate clusters (home cluster plus
// every cluster the node has edge weight into). sets may be nil.
func NewModel(g *graph.Graph, part *graph.Partition, sets annotation.Sets, importance *annotation.TermImportance) *Model {
	m := &Model{
		g:          g,
		part:       part,
		sets:       sets,
		importance: importance,
		quants:     make(map[string]map[int]Quantities),
		annScores:  make(map[string]map[int]float64),
		candidates: make(map[string][]int),
	}

	for _, node := range part.Nodes() {
		home, _ := part.Home(node)

		// Edge weight from this node into each cluster. Neighbors outside
		// the partition (filtered clusters) count only toward extra.
		// Accumulated in sorted neighbor order so rebuilt models are
		// bit-identical.
		nbrs := g.Neighbors(node)
		nbrKeys := make([]string, 0, len(nbrs))
		for nbr := range nbrs {
			nbrKeys = append(nbrKeys, nbr)
		}
		sort.Strings(nbrKeys)

		weightInto := make(map[int]float64)
		for _, nbr := range nbrKeys {
			if nbrCluster, ok := part.Home(nbr); ok {
				weightInto[nbrCluster] += nbrs[nbr]
			}
		}

		emax := 0.0
		for _, w := range weightInto {
			if w > emax {
				emax = w
			}
		}

		cands := make([]int, 0, len(weightInto)+1)
		seen := map[int]bool{home: true}
		cands = append(cands, home)
		for c := range weightInto {
			if !seen[c] {
				seen[c] = true
				cands = append(cands, c)
			}
		}
		sort.Ints(cands)
		m.candidates[node] = cands

		deg := g.Degree(node)
		nodeQuants := make(map[int]Quantities, len(cands))
		nodeAnn := make(map[int]float64, len(cands))
		for _, c := range cands {
			intra := weightInto[c]
			nodeQuants[c] = Quantities{
				Intra:        intra,
				Extra:        deg - intra,
				EMax:         emax,
				ClusteringIn: m.intraClustering(node, c),
			}
			nodeAnn[c] = m.computeAnnotationScore(node, c)
		}
		m.quants[node] = nodeQuants
		m.annScores[node] = nodeAnn
	}

	return m
}

// intraClustering computes the local clustering coefficient of a node
// restricted to a cluster's induced subgraph: edges among the node's
// intra-cluster neighbors over possible edges. Defined as 1 when fewer
// than two intra-cluster neighbors exist.
func (m *Model) intraClustering(node string, cluster int) float64 {
	neighbors := make([]string, 0)
	for nbr := range m.g.Neighbors(node) {
		if nbr == node {
			continue
		}
		if c, ok := m.part.Home(nbr); ok && c == cluster {
			neighbors = append(neighbors, nbr)
		}
	}

	k := len(neighbors)
	if k < 2 {
		return 1.0
	}
	sort.Strings(neighbors)

	triangles := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if m.g.HasEdge(neighbors[i], neighbors[j]) {
				triangles++
			}
		}
	}
	possible := k * (k - 1) / 2
	return float64(triangles) / float64(possible)
}

// computeAnnotationScore is the uncached annotation score: the
// importance-weighted sum over terms shared with the cluster, normalized by
// the node's term count, then saturated into [0, 1) with tanh. Saturation
// rather than clipping preserves ordering among large raw values.
func (m *Model) computeAnnotationScore(node string, cluster int) float64 {
	if m.sets == nil || m.importance == nil {
		return 0.0
	}
	terms := m.sets.Terms(node)
	if len(terms) == 0 || !m.importance.HasTerms(cluster) {
		return 0.0
	}

	sorted := make([]string, 0, len(terms))
	for term := range terms {
		sorted = append(sorted, term)
	}
	sort.Strings(sorted)

	raw := 0.0
	for _, term := range sorted {
		raw += m.importance.Score(cluster, term)
	}
	raw /= float64(len(terms))

	return math.Tanh(raw)
}

// CandidateClusters returns the clusters a node has nonzero affinity to
// (home cluster included), in ascending order
func (m *Model) CandidateClusters(node string) []int {
	return m.candidates[node]
}

// RawQuantities returns the cached structural quantities for a
// (node, cluster) pair, computing them on demand for non-candidate pairs
func (m *Model) RawQuantities(node string, cluster int) Quantities {
	if q, ok := m.quants[node][cluster]; ok {
		return q
	}

	// Non-candidate pair: no edges into the cluster
	deg := m.g.Degree(node)
	emax := 0.0
	if nodeQuants, ok := m.quants[node]; ok {
		for _, q := range nodeQuants {
			if q.EMax > emax {
				emax = q.EMax
			}
		}
	}
	return Quantities{
		Intra:        0,
		Extra:        deg,
		EMax:         emax,
		ClusteringIn: 1.0,
	}
}

// StructuralScore computes the permanence-style structural score for a
// (node, cluster) pair, bounded to [-1, 1]. Isolated nodes and nodes with
// no weight into any cluster score exactly 0.
func (m *Model) StructuralScore(node string, cluster int) float64 {
	deg := m.g.Degree(node)
	if deg == 0 {
		return 0.0
	}

	q := m.RawQuantities(node, cluster)
	if q.EMax == 0 {
		return 0.0
	}

	retention := q.Intra / deg
	var leakage float64
	switch {
	case q.Extra == 0:
		leakage = 0
	case q.ClusteringIn == 0:
		// Loosely knit intra neighborhood with external pull: maximal penalty
		return -1.0
	default:
		leakage = q.Extra / (deg * q.ClusteringIn)
	}

	return clip((retention-leakage)/q.EMax, -1.0, 1.0)
}

// AnnotationScore returns the cached annotation-coherence score for a
// (node, cluster) pair; exactly 0 when the node has no annotations or the
// cluster has no characteristic terms
func (m *Model) AnnotationScore(node string, cluster int) float64 {
	if s, ok := m.annScores[node][cluster]; ok {
		return s
	}
	return m.computeAnnotationScore(node, cluster)
}

// Membership combines the structural and annotation scores:
// alpha*structural + (1-alpha)*annotation, alpha clipped to [0,1].
// A result outside [-1,1] indicates a broken formula and panics.
func (m *Model) Membership(node string, cluster int, alpha float64) float64 {
	alpha = clip(alpha, 0.0, 1.0)
	structural := m.StructuralScore(node, cluster)
	annotation := m.AnnotationScore(node, cluster)

	combined := alpha*structural + (1-alpha)*annotation
	if combined < -1.0 || combined > 1.0 || math.IsNaN(combined) {
		panic(fmt.Sprintf("membership score out of range for node %s cluster %d: %f (structural=%f annotation=%f alpha=%f)",
			node, cluster, combined, structural, annotation, alpha))
	}
	return combined
}

// Records builds the full membership table for every partitioned node and
// its candidate clusters at the given alpha, in deterministic order
func (m *Model) Records(alpha float64) []MembershipRecord {
	records := make([]MembershipRecord, 0)
	for _, node := range m.part.Nodes() {
		for _, cluster := range m.candidates[node] {
			records = append(records, MembershipRecord{
				Node:       node,
				Cluster:    cluster,
				Structural: m.StructuralScore(node, cluster),
				Annotation: m.AnnotationScore(node, cluster),
				Combined:   m.Membership(node, cluster, alpha),
				Quantities: m.quants[node][cluster],
			})
		}
	}
	return records
}

// Partition returns the hard partition the model was built from
func (m *Model) Partition() *graph.Partition {
	return m.part
}

// Graph returns the network the model was built from
func (m *Model) Graph() *graph.Graph {
	return m.g
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
