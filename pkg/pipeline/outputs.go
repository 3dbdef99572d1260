package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gilchrisn/overlap-community-service/pkg/affinity"
	"github.com/gilchrisn/overlap-community-service/pkg/annotation"
	"github.com/gilchrisn/overlap-community-service/pkg/graph"
	"github.com/gilchrisn/overlap-community-service/pkg/overlap"
)

// outputWriter writes the per-run report files
type outputWriter struct {
	dir      string
	topTerms int
}

func newOutputWriter(dir string, topTerms int) *outputWriter {
	return &outputWriter{dir: dir, topTerms: topTerms}
}

// WriteAll writes every report file for a completed run
func (w *outputWriter) WriteAll(result *Result, part *graph.Partition, importance *annotation.TermImportance, model *affinity.Model, final *overlap.Assignment, alpha float64) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"initial_clusters.csv", func() error { return w.writeInitialClusters(part) }},
		{"term_importance.csv", func() error { return w.writeTermImportance(part, importance) }},
		{"membership_scores.csv", func() error { return w.writeMembershipScores(model, alpha) }},
		{"final_clusters.csv", func() error { return w.writeFinalClusters(final) }},
		{"overlap_summary.csv", func() error { return w.writeOverlapSummary(final) }},
		{"run_summary.json", func() error { return w.writeRunSummary(result) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("writing %s: %w", step.name, err)
		}
	}
	return nil
}

func (w *outputWriter) writeCSV(name string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *outputWriter) writeInitialClusters(part *graph.Partition) error {
	rows := make([][]string, 0, part.NumNodes())
	for _, id := range part.ClusterIDs() {
		for _, node := range part.Clusters[id] {
			rows = append(rows, []string{strconv.Itoa(id), node})
		}
	}
	return w.writeCSV("initial_clusters.csv", []string{"cluster_id", "node_id"}, rows)
}

func (w *outputWriter) writeTermImportance(part *graph.Partition, importance *annotation.TermImportance) error {
	rows := make([][]string, 0)
	for _, id := range part.ClusterIDs() {
		for rank, ts := range importance.TopTerms(id, w.topTerms) {
			rows = append(rows, []string{
				strconv.Itoa(id),
				strconv.Itoa(rank + 1),
				ts.Term,
				formatFloat(ts.Score),
			})
		}
	}
	return w.writeCSV("term_importance.csv", []string{"cluster_id", "rank", "term", "score"}, rows)
}

func (w *outputWriter) writeMembershipScores(model *affinity.Model, alpha float64) error {
	records := model.Records(alpha)
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Node,
			strconv.Itoa(r.Cluster),
			formatFloat(r.Structural),
			formatFloat(r.Annotation),
			formatFloat(r.Combined),
			formatFloat(r.Quantities.Intra),
			formatFloat(r.Quantities.Extra),
		})
	}
	return w.writeCSV("membership_scores.csv",
		[]string{"node_id", "cluster_id", "structural", "annotation", "combined", "intra_weight", "extra_weight"},
		rows)
}

func (w *outputWriter) writeFinalClusters(final *overlap.Assignment) error {
	clusters := final.Clusters()
	ids := make([]int, 0, len(clusters))
	for id := range clusters {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := make([][]string, 0)
	for _, id := range ids {
		for _, node := range clusters[id] {
			rows = append(rows, []string{strconv.Itoa(id), node})
		}
	}
	return w.writeCSV("final_clusters.csv", []string{"cluster_id", "node_id"}, rows)
}

func (w *outputWriter) writeOverlapSummary(final *overlap.Assignment) error {
	rows := make([][]string, 0)
	for _, node := range final.Nodes() {
		memberships := final.Memberships[node]
		if len(memberships) < 2 {
			continue
		}
		for _, m := range memberships {
			rows = append(rows, []string{
				node,
				strconv.Itoa(len(memberships)),
				strconv.Itoa(m.Cluster),
				formatFloat(m.Score),
			})
		}
	}
	return w.writeCSV("overlap_summary.csv",
		[]string{"node_id", "num_memberships", "cluster_id", "score"}, rows)
}

func (w *outputWriter) writeRunSummary(result *Result) error {
	f, err := os.Create(filepath.Join(w.dir, "run_summary.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
