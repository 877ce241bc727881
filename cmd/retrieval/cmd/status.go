package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/async"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/config"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/ui"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/indexer"
)

type statusOptions struct {
	corpusPath string
	configPath string
	jsonOut    bool
	noColor    bool
}

func newStatusCmd() *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load a corpus manifest in the background and report its size and family readiness",
		Long: `status loads a corpus manifest the same way search does, but off the
main goroutine via a BackgroundRunner, polling its progress until the load
completes or fails. It then reports article/image counts, on-disk artifact
sizes, and which model families came up ready.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.corpusPath, "corpus", "", "path to the corpus manifest JSON file (required)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to the family config JSON file (defaults to built-in defaults)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit status as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable ANSI color in the status report")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts statusOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	dataDir := "."
	if async.HasIncompleteLock(dataDir) {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: found a stale run.lock from a previous incomplete run")
	}

	runner := async.NewBackgroundRunner(async.RunnerConfig{DataDir: dataDir})

	var built *indexer.Built
	runner.RunFunc = func(ctx context.Context, progress *async.RunProgress) error {
		progress.SetStage(async.StageLoading, 1)
		b, err := loadCorpusManifest(ctx, opts.corpusPath, indexer.Options{EntityWeights: cfg.EntityWeights})
		if err != nil {
			return err
		}
		built = b
		progress.UpdateQueries(1)
		return nil
	}

	runner.Start(ctx)
	for runner.IsRunning() {
		time.Sleep(50 * time.Millisecond)
	}
	if err := runner.Wait(); err != nil {
		return fmt.Errorf("cmd: background corpus load: %w", err)
	}
	defer built.Close()

	articleIDs, err := built.Corpus.AllArticleIDs(ctx)
	if err != nil {
		return fmt.Errorf("cmd: list articles: %w", err)
	}

	familyStatus := "ready"
	var activeFamily, familyModel string
	for name := range cfg.ActiveFamilies() {
		activeFamily = name
		familyModel = name
		break
	}
	if activeFamily == "" {
		familyStatus = "offline"
	}

	info := ui.StatusInfo{
		CorpusName:    opts.corpusPath,
		TotalArticles: len(articleIDs),
		TotalImages:   len(built.Corpus.ImagesForArticles(articleIDs)),
		LastLoaded:    time.Now(),
		MetadataSize:  fileSize(opts.corpusPath),
		ActiveFamily:  activeFamily,
		FamilyStatus:  familyStatus,
		FamilyModel:   familyModel,
		WatcherStatus: "stopped",
	}
	info.TotalSize = info.MetadataSize + info.TextIndexSize + info.VectorSize

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), opts.noColor)
	if opts.jsonOut {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
