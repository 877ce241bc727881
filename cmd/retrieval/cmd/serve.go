package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/mcpserver"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/pipeline"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/preflight"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/indexer"
)

type serveOptions struct {
	corpusPath string
	configPath string
	transport  string
	skipCheck  bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the retrieval pipeline as an MCP server",
		Long: `serve loads a corpus manifest and family config, then exposes the
search_articles, search_images, and rerank tools over the Model Context
Protocol, for use by AI coding assistants like Claude Code and Cursor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.corpusPath, "corpus", "", "path to the corpus manifest JSON file (required)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to the family config JSON file (defaults to built-in defaults)")
	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "MCP transport (only stdio is supported)")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "skip preflight system checks")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cmd: invalid config: %w", err)
	}

	if !opts.skipCheck {
		checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()))
		results := checker.RunAll(ctx, ".", opts.corpusPath)
		if checker.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return fmt.Errorf("cmd: preflight checks failed")
		}
	}

	built, err := loadCorpusManifest(ctx, opts.corpusPath, indexer.Options{EntityWeights: cfg.EntityWeights})
	if err != nil {
		return err
	}
	defer built.Close()

	orch := pipeline.New(cfg, built.Text, built.Vectors, built.Corpus, 0)
	srv, err := mcpserver.NewServer(orch, built.Text)
	if err != nil {
		return err
	}

	return srv.Serve(ctx, opts.transport)
}
