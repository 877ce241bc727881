package cmd

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/output"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/rrf"
)

type rerankOptions struct {
	inputs    []string
	queryIDs  string
	outPath   string
	idColumn  string
	k         float64
	topN      int
	adaptive  bool
}

func newRerankCmd() *cobra.Command {
	var opts rerankOptions

	cmd := &cobra.Command{
		Use:   "rerank",
		Short: "Fuse several ranked-list CSV files via reciprocal rank fusion",
		Long: `rerank reads N ranked-list submission files sharing a query-ID
column and fuses them with reciprocal rank fusion, in anti-biased normal
mode or a per-query adaptive-width mode, and writes the fused result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRerank(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.inputs, "in", nil, "ranked-list CSV file to fuse (repeatable, at least one required)")
	cmd.Flags().StringVar(&opts.queryIDs, "query-ids", "", "newline-delimited file of query IDs to produce output for (default: union of query IDs across --in)")
	cmd.Flags().StringVar(&opts.outPath, "out", "reranked.csv", "path to write the fused CSV to")
	cmd.Flags().StringVar(&opts.idColumn, "id-column", "item_id", "column name prefix for the output CSV")
	cmd.Flags().Float64Var(&opts.k, "k", 60, "RRF constant")
	cmd.Flags().IntVar(&opts.topN, "top-n", 10, "output width per query")
	cmd.Flags().BoolVar(&opts.adaptive, "adaptive", false, "use the per-query adaptive cap instead of the fixed width")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func runRerank(cmd *cobra.Command, opts rerankOptions) error {
	if len(opts.inputs) == 0 {
		return fmt.Errorf("cmd: at least one --in file is required")
	}

	out := output.New(cmd.OutOrStdout())

	files := make([]rrf.FileResult, len(opts.inputs))
	seen := make(map[string]bool)
	for i, path := range opts.inputs {
		entries, err := output.ReadRankedCSV(path)
		if err != nil {
			return err
		}
		files[i] = rrf.FileResult{Name: path, QueryEntries: entries}
		for qid := range entries {
			seen[qid] = true
		}
	}

	queryIDs, err := resolveQueryIDs(opts.queryIDs, seen)
	if err != nil {
		return err
	}

	results := rrf.Rerank(rrf.Config{K: opts.k, TopN: opts.topN, Adaptive: opts.adaptive}, files, queryIDs)

	if err := writeFusedCSV(opts.outPath, opts.idColumn, queryIDs, results, opts.topN); err != nil {
		return err
	}

	out.Successf("fused %d files across %d queries -> %s", len(opts.inputs), len(queryIDs), opts.outPath)
	return nil
}

func resolveQueryIDs(path string, fallback map[string]bool) ([]string, error) {
	if path == "" {
		ids := make([]string, 0, len(fallback))
		for id := range fallback {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: read query ID file %s: %w", path, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func writeFusedCSV(path, idColumn string, queryIDs []string, results map[string][]string, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cmd: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := make([]string, width+1)
	header[0] = "query_id"
	for i := 0; i < width; i++ {
		header[i+1] = fmt.Sprintf("%s_%d", idColumn, i+1)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, qid := range queryIDs {
		row := append([]string{qid}, results[qid]...)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
