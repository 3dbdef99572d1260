// Package overlap converts per-cluster membership scores into an
// overlapping community assignment. A node always keeps its home cluster;
// additional memberships are granted by an absolute acceptance threshold or
// by a near-tie transfer threshold against the node's best score.
package overlap

import (
	"sort"

	"github.com/gilchrisn/overlap-community-service/pkg/affinity"
)

// Membership is one accepted (cluster, score) pair for a node
type Membership struct {
	Cluster int     `json:"cluster"`
	Score   float64 `json:"score"`
}

// Assignment maps every partitioned node to the clusters it was accepted
// into. Invariant: each node appears at least in its home cluster.
type Assignment struct {
	Memberships map[string][]Membership `json:"memberships"`
	nodeOrder   []string
}

// Assigner applies the threshold rules on top of an affinity model
type Assigner struct {
	model *affinity.Model
}

// NewAssigner creates an assigner over a precomputed affinity model
func NewAssigner(model *affinity.Model) *Assigner {
	return &Assigner{model: model}
}

// Assign derives the overlapping assignment for the given parameters.
// A node joins a non-home cluster c when membership(c) >= tauAccept, or
// when tauTransfer > 0 and best - membership(c) <= tauTransfer. With
// tauTransfer == 0 only the strict acceptance rule applies.
func (a *Assigner) Assign(alpha, tauAccept, tauTransfer float64) *Assignment {
	part := a.model.Partition()
	nodes := part.Nodes()

	out := &Assignment{
		Memberships: make(map[string][]Membership, len(nodes)),
		nodeOrder:   nodes,
	}

	for _, node := range nodes {
		home, _ := part.Home(node)
		candidates := a.model.CandidateClusters(node)

		scores := make(map[int]float64, len(candidates))
		best := 0.0
		first := true
		for _, c := range candidates {
			s := a.model.Membership(node, c, alpha)
			scores[c] = s
			if first || s > best {
				best = s
				first = false
			}
		}

		accepted := make([]Membership, 0, 1)
		for _, c := range candidates {
			s := scores[c]
			switch {
			case c == home:
				accepted = append(accepted, Membership{Cluster: c, Score: s})
			case s >= tauAccept:
				accepted = append(accepted, Membership{Cluster: c, Score: s})
			case tauTransfer > 0 && best-s <= tauTransfer:
				accepted = append(accepted, Membership{Cluster: c, Score: s})
			}
		}

		sort.Slice(accepted, func(i, j int) bool {
			if accepted[i].Score != accepted[j].Score {
				return accepted[i].Score > accepted[j].Score
			}
			return accepted[i].Cluster < accepted[j].Cluster
		})
		out.Memberships[node] = accepted
	}

	return out
}

// Nodes returns assigned nodes in deterministic partition order
func (a *Assignment) Nodes() []string {
	return a.nodeOrder
}

// Clusters inverts the assignment into cluster -> sorted node list
func (a *Assignment) Clusters() map[int][]string {
	clusters := make(map[int][]string)
	for node, memberships := range a.Memberships {
		for _, m := range memberships {
			clusters[m.Cluster] = append(clusters[m.Cluster], node)
		}
	}
	for _, nodes := range clusters {
		sort.Strings(nodes)
	}
	return clusters
}

// Contains reports whether a node was accepted into a cluster
func (a *Assignment) Contains(node string, cluster int) bool {
	for _, m := range a.Memberships[node] {
		if m.Cluster == cluster {
			return true
		}
	}
	return false
}

// OverlapCount returns the number of nodes with more than one membership
func (a *Assignment) OverlapCount() int {
	n := 0
	for _, memberships := range a.Memberships {
		if len(memberships) > 1 {
			n++
		}
	}
	return n
}
