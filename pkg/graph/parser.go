package graph

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadEdgeList reads a weighted edge list file. Each non-comment line has
// the form "nodeA<tab>nodeB[<tab>weight]"; a missing weight defaults to 1.
// When normalize is true, weights are scaled by the maximum weight so the
// heaviest edge has weight 1.
func LoadEdgeList(path string, normalize bool) (*Graph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edge list: %w", err)
	}
	defer file.Close()

	type rawEdge struct {
		from, to string
		weight   float64
	}
	edges := make([]rawEdge, 0)
	maxWeight := 0.0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected at least 2 fields, got %d", lineNum, len(fields))
		}

		weight := 1.0
		if len(fields) >= 3 {
			weight, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid weight %q: %w", lineNum, fields[2], err)
			}
		}
		if weight <= 0 {
			return nil, fmt.Errorf("line %d: non-positive weight %f", lineNum, weight)
		}

		edges = append(edges, rawEdge{from: fields[0], to: fields[1], weight: weight})
		if weight > maxWeight {
			maxWeight = weight
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge list: %w", err)
	}

	g := NewGraph()
	for _, e := range edges {
		w := e.weight
		if normalize && maxWeight > 0 {
			w = e.weight / maxWeight
		}
		if err := g.AddEdge(e.from, e.to, w); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// LoadPartitionCSV reads a hard partition from a CSV-like file with lines
// "cluster_id,node_id". A header line is skipped if present.
func LoadPartitionCSV(path string) (*Partition, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open partition file: %w", err)
	}
	defer file.Close()

	clusters := make(map[int][]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected cluster_id,node_id", lineNum)
		}

		clusterID, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			if lineNum == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: invalid cluster ID %q: %w", lineNum, parts[0], err)
		}

		node := strings.TrimSpace(parts[1])
		if node == "" {
			return nil, fmt.Errorf("line %d: empty node ID", lineNum)
		}
		clusters[clusterID] = append(clusters[clusterID], node)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partition file: %w", err)
	}

	return NewPartition(clusters)
}
