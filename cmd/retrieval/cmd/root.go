// Package cmd provides the CLI commands for the retrieval engine.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/logging"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/profiling"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/version"
)

var (
	debugMode bool

	profileCPU   string
	profileMem   string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	loggingClean func()
)

// NewRootCmd creates the root command for the retrieval CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "retrieval",
		Short:   "Entity-weighted multimodal retrieval engine",
		Version: version.Version,
		Long: `retrieval runs the two-stage entity-weighted article and image
retrieval pipeline: stage-1 scores articles against a query's extracted
entities, stage-2 runs article-conditioned vector search across every
active model family and view, and the two fuse via reciprocal rank
fusion / weighted voting.`,
	}
	cmd.SetVersionTemplate("retrieval version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to the retrieval log directory")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "write a memory profile to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRerankCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDaemonCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return err
		}
		loggingClean = cleanup
		slog.SetDefault(logger)
	}

	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return err
		}
		cpuCleanup = cleanup
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return err
		}
	}
	if loggingClean != nil {
		loggingClean()
		loggingClean = nil
	}
	return nil
}
