// Package annotation handles per-node annotation term sets (e.g., GO terms
// for proteins) and cluster-level term importance. Annotations are optional
// everywhere: a nil or empty Sets value is a valid state, not an error.
package annotation

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// TermSet is a set of annotation term identifiers
type TermSet map[string]struct{}

// Sets maps node IDs to their annotation terms. Nodes without annotations
// are simply absent.
type Sets map[string]TermSet

// Has reports whether the set contains a term
func (ts TermSet) Has(term string) bool {
	_, ok := ts[term]
	return ok
}

// Terms returns the node's terms, or nil for unannotated nodes
func (s Sets) Terms(node string) TermSet {
	return s[node]
}

// Add records a term for a node
func (s Sets) Add(node, term string) {
	ts, exists := s[node]
	if !exists {
		ts = make(TermSet)
		s[node] = ts
	}
	ts[term] = struct{}{}
}

// NumAnnotated returns the number of nodes with at least one term
func (s Sets) NumAnnotated() int {
	n := 0
	for _, ts := range s {
		if len(ts) > 0 {
			n++
		}
	}
	return n
}

// GAFOptions controls GAF parsing
type GAFOptions struct {
	UseSymbol bool // use DB_Object_Symbol (column 3) instead of DB_Object_ID (column 2)
	TaxonID   int  // filter annotations to this taxon; 0 disables the filter
}

// LoadGAF parses a GAF 2.x annotation file, optionally gzip-compressed,
// into node -> term sets. Comment lines start with '!'.
func LoadGAF(path string, opts GAFOptions) (Sets, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip annotation file: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	sets := make(Sets)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 13 {
			continue // malformed row; GAF requires 15 columns but taxon is at 13
		}

		if opts.TaxonID != 0 {
			taxon := fmt.Sprintf("taxon:%d", opts.TaxonID)
			if !strings.Contains(fields[12], taxon) {
				continue
			}
		}

		id := fields[1]
		if opts.UseSymbol {
			id = fields[2]
		}
		term := fields[4]
		if id == "" || !strings.HasPrefix(term, "GO:") {
			continue
		}

		sets.Add(id, term)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotation file: %w", err)
	}

	return sets, nil
}

// SortedNodes returns annotated node IDs in lexicographic order
func (s Sets) SortedNodes() []string {
	nodes := make([]string, 0, len(s))
	for node := range s {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}
