package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/config"
	retrievalerrors "github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/errors"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/output"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/pipeline"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/preflight"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/runs"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/telemetry"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/ui"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/indexer"
)

type searchOptions struct {
	corpusPath  string
	queriesPath string
	configPath  string
	outDir      string
	skipCheck   bool
	plain       bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run the full retrieval cascade over a batch of queries",
		Long: `search loads a corpus manifest and a query batch, runs the
stage-1 entity-weighted article retriever, the stage-2 article-conditioned
vector search across every active model family, and writes the stage-1
and stage-2 ranked lists to --out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.corpusPath, "corpus", "", "path to the corpus manifest JSON file (required)")
	cmd.Flags().StringVar(&opts.queriesPath, "queries", "", "path to the query batch JSON file (required)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to the family config JSON file (defaults to built-in defaults)")
	cmd.Flags().StringVar(&opts.outDir, "out", ".", "directory to write stage-1/stage-2 artifacts to")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "skip preflight system checks")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "force plain text progress output instead of the interactive TUI")
	_ = cmd.MarkFlagRequired("corpus")
	_ = cmd.MarkFlagRequired("queries")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(opts.plain), ui.WithNoColor(ui.DetectNoColor()))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("cmd: start renderer: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	runStart := time.Now()
	var timings ui.StageTimings
	var renderErrors, renderWarnings int

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cmd: invalid config: %w", err)
	}

	if !opts.skipCheck {
		checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()))
		results := checker.RunAll(ctx, opts.outDir, filepath.Join(opts.outDir, "corpus.db"))
		if checker.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return fmt.Errorf("cmd: preflight checks failed")
		}
	}

	loadStart := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Message: "loading corpus manifest"})
	built, err := loadCorpusManifest(ctx, opts.corpusPath, indexer.Options{EntityWeights: cfg.EntityWeights})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{File: opts.corpusPath, Err: err})
		renderErrors++
		return err
	}
	defer built.Close()

	queries, err := loadQueryManifest(opts.queriesPath)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{File: opts.queriesPath, Err: err})
		renderErrors++
		return err
	}
	timings.Load = time.Since(loadStart)

	run := runs.New("", opts.configPath, opts.corpusPath, opts.queriesPath)
	run.Start()
	runDir := filepath.Join(opts.outDir, "runs")
	if saveErr := runs.Save(runDir, run); saveErr != nil {
		slog.Warn("failed to persist run metadata", slog.String("error", saveErr.Error()))
	}

	orch := pipeline.New(cfg, built.Text, built.Vectors, built.Corpus, runtime.GOMAXPROCS(0)*2)

	metrics := telemetry.NewQueryMetrics(nil)
	defer metrics.Close()

	var queryFailures []retrievalerrors.RetrievalError

	articleStart := time.Now()
	articleLists := make([]model.RankedList, 0, len(queries))
	for i, q := range queries {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageArticleSearch,
			Current: i + 1,
			Total:   len(queries),
			Message: q.ID,
		})

		started := time.Now()
		rl, err := built.Text.Search(ctx, q, cfg.ArticleTopK)
		latency := time.Since(started)
		if err != nil {
			classified := retrievalerrors.Wrap(retrievalerrors.ErrCodeSearchFailed, err)
			slog.Error("stage-1 search failed, recording sentinel result", slog.String("query_id", q.ID), slog.String("code", classified.Code), slog.String("error", err.Error()))
			renderer.AddError(ui.ErrorEvent{File: q.ID, Err: err, IsWarn: true})
			renderWarnings++
			queryFailures = append(queryFailures, *classified)
			articleLists = append(articleLists, model.RankedList{QueryID: q.ID})
			continue
		}

		queryType := telemetry.QueryTypeNoEntities
		switch {
		case len(q.Entities) == 0:
			queryType = telemetry.QueryTypeNoEntities
		case len(rl.Entries) == 0:
			queryType = telemetry.QueryTypeArticleMiss
		default:
			queryType = telemetry.QueryTypeArticleMatched
		}
		metrics.Record(telemetry.QueryEvent{
			Query:       q.Caption,
			QueryType:   queryType,
			ResultCount: len(rl.Entries),
			Latency:     latency,
			Timestamp:   started,
		})
		articleLists = append(articleLists, rl)
	}
	timings.ArticleSearch = time.Since(articleStart)

	vectorStart := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageVectorSearch, Total: len(queries), Message: "article-conditioned vector search"})
	imageLists, err := orch.Run(ctx, queries)
	timings.VectorSearch = time.Since(vectorStart)
	if err != nil {
		run.Fail(err)
		_ = runs.Save(runDir, run)
		renderer.AddError(ui.ErrorEvent{Err: err})
		renderErrors++
		return fmt.Errorf("cmd: pipeline run: %w", err)
	}
	for _, f := range orch.Failures() {
		queryFailures = append(queryFailures, *f.Err)
		renderWarnings++
	}
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageFusion, Total: len(queries), Message: "RRF fusion"})

	stage1Path := filepath.Join(opts.outDir, "stage1.csv")
	if err := output.WriteRankedCSV(stage1Path, "article_id", articleLists, cfg.ArticleTopK); err != nil {
		return err
	}
	stage1JSONPath := filepath.Join(opts.outDir, "stage1.json")
	if err := output.WriteRankedJSON(stage1JSONPath, articleLists); err != nil {
		return err
	}

	stage2Path := filepath.Join(opts.outDir, "stage2.csv")
	width := cfg.FinalTopK
	if width <= 0 {
		width = cfg.ImageTopK
	}
	if err := output.WriteRankedCSV(stage2Path, "image_id", imageLists, width); err != nil {
		return err
	}

	successful, empty := 0, 0
	for _, rl := range imageLists {
		if len(rl.Entries) == 0 {
			empty++
			continue
		}
		successful++
	}

	run.Complete(len(queries), len(articleLists), successful, stage2Path, stage1JSONPath)
	if saveErr := runs.Save(runDir, run); saveErr != nil {
		slog.Warn("failed to persist run completion", slog.String("error", saveErr.Error()))
	}

	snap := metrics.Snapshot()

	var primaryFamily ui.FamilyInfo
	for name, fc := range cfg.ActiveFamilies() {
		primaryFamily = ui.FamilyInfo{Name: name, SearchCollection: fc.SearchCollection}
		break
	}
	renderer.Complete(ui.CompletionStats{
		Queries:  len(queries),
		Results:  successful,
		Duration: time.Since(runStart),
		Errors:   renderErrors,
		Warnings: renderWarnings,
		Stages:   timings,
		Family:   primaryFamily,
	})

	out.Successf("processed %d queries: %d with results, %d empty", len(queries), successful, empty)
	out.Status("", fmt.Sprintf("stage-1 written to %s", stage1Path))
	out.Status("", fmt.Sprintf("stage-2 written to %s", stage2Path))
	out.Status("", fmt.Sprintf("run metadata: %s", filepath.Join(runDir, run.ID)))
	out.Status("", fmt.Sprintf("stage-1 zero-result rate: %.1f%%, %s", snap.ZeroResultPercentage(), snap.RepetitionSummary()))
	if summary := summarizeQueryFailures(queryFailures); summary != "" {
		out.Status("", summary)
	}
	return nil
}

// summarizeQueryFailures builds a one-line per-run error summary from
// the cascade failures tolerated during the run, grouped by
// internal/errors category so a reader can see at a glance whether the
// run's failures were retryable (e.g. a flaky collection) or not.
func summarizeQueryFailures(failures []retrievalerrors.RetrievalError) string {
	if len(failures) == 0 {
		return ""
	}
	byCategory := make(map[retrievalerrors.Category]int)
	retryable := 0
	for _, f := range failures {
		byCategory[f.Category]++
		if f.Retryable {
			retryable++
		}
	}
	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)
	parts := make([]string, len(cats))
	for i, cat := range cats {
		parts[i] = fmt.Sprintf("%s=%d", cat, byCategory[retrievalerrors.Category(cat)])
	}
	return fmt.Sprintf("%d query failures tolerated (%s), %d retryable", len(failures), strings.Join(parts, ", "), retryable)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadJSON(path)
}
