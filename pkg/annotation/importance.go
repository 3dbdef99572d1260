package annotation

import (
	"math"
	"sort"

	"github.com/gilchrisn/overlap-community-service/pkg/graph"
)

// TermImportance holds term-frequency–inverse-cluster-frequency weights:
// how characteristic each term is for each cluster. Derived once from a
// hard partition plus annotation sets, read-only thereafter.
type TermImportance struct {
	scores      map[int]map[string]float64 // cluster -> term -> tf-icf
	numClusters int
}

// TermScore pairs a term with its importance weight
type TermScore struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// BuildTermImportance computes tf-icf weights for every (cluster, term)
// pair. tf is the term count in the cluster normalized by cluster size;
// icf is ln(numClusters / clustersContainingTerm).
func BuildTermImportance(p *graph.Partition, sets Sets) *TermImportance {
	ti := &TermImportance{
		scores:      make(map[int]map[string]float64),
		numClusters: p.NumClusters(),
	}
	if ti.numClusters == 0 || len(sets) == 0 {
		return ti
	}

	// Term counts per cluster and cluster counts per term
	counts := make(map[int]map[string]int)
	clusterFreq := make(map[string]int)

	for _, id := range p.ClusterIDs() {
		termCounts := make(map[string]int)
		for _, node := range p.Clusters[id] {
			for term := range sets.Terms(node) {
				termCounts[term]++
			}
		}
		counts[id] = termCounts
		for term := range termCounts {
			clusterFreq[term]++
		}
	}

	for _, id := range p.ClusterIDs() {
		size := p.Size(id)
		if size == 0 {
			continue
		}
		termScores := make(map[string]float64, len(counts[id]))
		for term, count := range counts[id] {
			tf := float64(count) / float64(size)
			icf := math.Log(float64(ti.numClusters) / float64(clusterFreq[term]))
			termScores[term] = tf * icf
		}
		ti.scores[id] = termScores
	}

	return ti
}

// Score returns the importance of a term for a cluster, 0 if unknown
func (ti *TermImportance) Score(cluster int, term string) float64 {
	return ti.scores[cluster][term]
}

// HasTerms reports whether a cluster has any characteristic terms
func (ti *TermImportance) HasTerms(cluster int) bool {
	return len(ti.scores[cluster]) > 0
}

// TopTerms returns the k highest-scoring terms of a cluster, ties broken
// by term ID for determinism
func (ti *TermImportance) TopTerms(cluster, k int) []TermScore {
	terms := make([]TermScore, 0, len(ti.scores[cluster]))
	for term, score := range ti.scores[cluster] {
		terms = append(terms, TermScore{Term: term, Score: score})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Score != terms[j].Score {
			return terms[i].Score > terms[j].Score
		}
		return terms[i].Term < terms[j].Term
	})
	if k > 0 && len(terms) > k {
		terms = terms[:k]
	}
	return terms
}

// All returns the full cluster -> term -> score table. The returned maps
// are owned by the TermImportance and must not be modified.
func (ti *TermImportance) All() map[int]map[string]float64 {
	return ti.scores
}
