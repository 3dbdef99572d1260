package graph

import (
	"fmt"
	"sort"
)

// Node represents a node in the network
type Node struct {
	ID     string  `json:"id"`
	Degree float64 `json:"degree"` // weighted degree
}

// EdgeKey represents a directed edge between two nodes
type EdgeKey struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph represents a weighted undirected network. Nodes are opaque string
// identifiers (e.g., protein IDs) and edges carry a positive weight.
// The graph is treated as immutable once loaded.
type Graph struct {
	Nodes       map[string]Node               `json:"nodes"`
	Adjacency   map[string]map[string]float64 `json:"-"` // adjacency[u][v] = edge weight
	NodeList    []string                      `json:"-"` // ordered node IDs for deterministic iteration
	TotalWeight float64                       `json:"total_weight"`
	NumEdges    int                           `json:"num_edges"`
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]Node),
		Adjacency: make(map[string]map[string]float64),
		NodeList:  make([]string, 0),
	}
}

// AddNode adds a node if it doesn't exist
func (g *Graph) AddNode(id string) {
	if _, exists := g.Nodes[id]; exists {
		return
	}
	g.Nodes[id] = Node{ID: id}
	g.Adjacency[id] = make(map[string]float64)
	g.NodeList = append(g.NodeList, id)
}

// AddEdge adds a weighted undirected edge, creating nodes as needed.
// Adding the same pair again overwrites the previous weight.
func (g *Graph) AddEdge(u, v string, weight float64) error {
	if weight <= 0 {
		return fmt.Errorf("edge weight must be positive: %s-%s weight=%f", u, v, weight)
	}

	g.AddNode(u)
	g.AddNode(v)

	if old, exists := g.Adjacency[u][v]; exists {
		// Replace: back out the old weight first
		g.adjustDegree(u, -old)
		if u != v {
			g.adjustDegree(v, -old)
		} else {
			g.adjustDegree(u, -old)
		}
		g.TotalWeight -= old
		g.NumEdges--
	}

	g.Adjacency[u][v] = weight
	g.Adjacency[v][u] = weight
	g.adjustDegree(u, weight)
	if u != v {
		g.adjustDegree(v, weight)
	} else {
		// Self-loop counts twice toward degree
		g.adjustDegree(u, weight)
	}

	g.TotalWeight += weight
	g.NumEdges++
	return nil
}

func (g *Graph) adjustDegree(id string, delta float64) {
	node := g.Nodes[id]
	node.Degree += delta
	g.Nodes[id] = node
}

// HasNode reports whether the node exists
func (g *Graph) HasNode(id string) bool {
	_, exists := g.Nodes[id]
	return exists
}

// HasEdge reports whether an edge exists between u and v
func (g *Graph) HasEdge(u, v string) bool {
	_, exists := g.Adjacency[u][v]
	return exists
}

// EdgeWeight returns the weight of edge u-v, or 0 if absent
func (g *Graph) EdgeWeight(u, v string) float64 {
	return g.Adjacency[u][v]
}

// Degree returns the weighted degree of a node, or 0 for unknown nodes
func (g *Graph) Degree(id string) float64 {
	return g.Nodes[id].Degree
}

// Neighbors returns the adjacency map of a node. The returned map is owned
// by the graph and must not be modified.
func (g *Graph) Neighbors(id string) map[string]float64 {
	return g.Adjacency[id]
}

// NumNodes returns the number of nodes
func (g *Graph) NumNodes() int {
	return len(g.Nodes)
}

// SortedNodes returns node IDs in lexicographic order
func (g *Graph) SortedNodes() []string {
	nodes := make([]string, len(g.NodeList))
	copy(nodes, g.NodeList)
	sort.Strings(nodes)
	return nodes
}

// Clone creates a deep copy of the graph
func (g *Graph) Clone() *Graph {
	clone := NewGraph()
	for _, id := range g.NodeList {
		clone.AddNode(id)
		clone.Nodes[id] = g.Nodes[id]
	}
	for u, nbrs := range g.Adjacency {
		for v, w := range nbrs {
			clone.Adjacency[u][v] = w
		}
	}
	clone.TotalWeight = g.TotalWeight
	clone.NumEdges = g.NumEdges
	return clone
}

// Validate checks graph consistency
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	if len(g.NodeList) != len(g.Nodes) {
		return fmt.Errorf("node list length %d inconsistent with node map size %d", len(g.NodeList), len(g.Nodes))
	}

	for u, nbrs := range g.Adjacency {
		if _, exists := g.Nodes[u]; !exists {
			return fmt.Errorf("adjacency references unknown node %s", u)
		}
		for v, w := range nbrs {
			if _, exists := g.Nodes[v]; !exists {
				return fmt.Errorf("edge %s-%s references unknown node %s", u, v, v)
			}
			if w <= 0 {
				return fmt.Errorf("non-positive weight %f for edge %s-%s", w, u, v)
			}
			if back, exists := g.Adjacency[v][u]; !exists || back != w {
				return fmt.Errorf("asymmetric edge %s-%s", u, v)
			}
		}
	}

	return nil
}
