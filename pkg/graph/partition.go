package graph

import (
	"fmt"
	"sort"
)

// Partition represents a hard clustering: every covered node belongs to
// exactly one cluster. Cluster IDs are small integers assigned by the
// clustering step. The partition is an input invariant and is never mutated
// by the scoring engine; derived partitions are new values.
type Partition struct {
	Clusters map[int][]string `json:"clusters"` // cluster ID -> sorted node IDs
	home     map[string]int   // node -> cluster ID
	ids      []int            // sorted cluster IDs
}

// NewPartition builds a partition from a cluster -> nodes mapping.
// Returns an error if a node appears in more than one cluster.
func NewPartition(clusters map[int][]string) (*Partition, error) {
	p := &Partition{
		Clusters: make(map[int][]string, len(clusters)),
		home:     make(map[string]int),
		ids:      make([]int, 0, len(clusters)),
	}

	for id, nodes := range clusters {
		sorted := make([]string, len(nodes))
		copy(sorted, nodes)
		sort.Strings(sorted)

		for _, node := range sorted {
			if prev, exists := p.home[node]; exists {
				return nil, fmt.Errorf("node %s assigned to clusters %d and %d", node, prev, id)
			}
			p.home[node] = id
		}
		p.Clusters[id] = sorted
		p.ids = append(p.ids, id)
	}
	sort.Ints(p.ids)

	return p, nil
}

// Home returns the cluster a node belongs to
func (p *Partition) Home(node string) (int, bool) {
	id, exists := p.home[node]
	return id, exists
}

// ClusterIDs returns cluster IDs in ascending order
func (p *Partition) ClusterIDs() []int {
	ids := make([]int, len(p.ids))
	copy(ids, p.ids)
	return ids
}

// Nodes returns all partitioned nodes in deterministic order
// (clusters ascending, nodes lexicographic within a cluster)
func (p *Partition) Nodes() []string {
	nodes := make([]string, 0, len(p.home))
	for _, id := range p.ids {
		nodes = append(nodes, p.Clusters[id]...)
	}
	return nodes
}

// NumClusters returns the number of clusters
func (p *Partition) NumClusters() int {
	return len(p.Clusters)
}

// NumNodes returns the number of partitioned nodes
func (p *Partition) NumNodes() int {
	return len(p.home)
}

// Size returns the size of a cluster
func (p *Partition) Size(cluster int) int {
	return len(p.Clusters[cluster])
}

// SmallClusterFraction returns the fraction of clusters at or below the
// given size. Used as the fragmentation baseline.
func (p *Partition) SmallClusterFraction(maxSize int) float64 {
	if len(p.Clusters) == 0 {
		return 0
	}
	small := 0
	for _, nodes := range p.Clusters {
		if len(nodes) <= maxSize {
			small++
		}
	}
	return float64(small) / float64(len(p.Clusters))
}

// FilterMinSize returns a new partition without clusters smaller than
// minSize. Nodes of removed clusters leave the partition entirely.
func (p *Partition) FilterMinSize(minSize int) *Partition {
	filtered := make(map[int][]string)
	for id, nodes := range p.Clusters {
		if len(nodes) >= minSize {
			filtered[id] = nodes
		}
	}
	out, err := NewPartition(filtered)
	if err != nil {
		// Subsetting a valid partition cannot introduce duplicates
		panic(fmt.Sprintf("partition filter produced invalid partition: %v", err))
	}
	return out
}

// Validate checks that every partitioned node exists in the graph
func (p *Partition) Validate(g *Graph) error {
	if len(p.Clusters) == 0 {
		return fmt.Errorf("partition has no clusters")
	}
	for id, nodes := range p.Clusters {
		if len(nodes) == 0 {
			return fmt.Errorf("cluster %d is empty", id)
		}
		for _, node := range nodes {
			if !g.HasNode(node) {
				return fmt.Errorf("cluster %d contains unknown node %s", id, node)
			}
		}
	}
	return nil
}
