package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/logging"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
	source  string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail or follow retrieval server logs",
		Long: `logs views the Go server log and the pipeline worker log, either as
a one-shot tail of the last N lines or, with --follow, streamed live like
'tail -f'. --source all merges both logs by timestamp when tailing; when
following, entries appear in the order they are read.

Examples:
  retrieval logs                    # last 50 lines of the Go server log
  retrieval logs --source worker    # pipeline worker log
  retrieval logs --source all -f    # follow both logs
  retrieval logs --level error      # only error-level entries
  retrieval logs --filter "search"  # filter by regex pattern`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "filter by pattern (regex)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "path to log file (overrides --source)")
	cmd.Flags().StringVar(&opts.source, "source", "go", "log source: go, worker, or all")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	logSource := logging.ParseLogSource(opts.source)

	paths, err := logging.FindLogFileBySource(logSource, opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("cmd: invalid filter pattern: %w", err)
		}
	}

	showSource := logSource == logging.LogSourceAll || len(paths) > 1

	errOut := cmd.ErrOrStderr()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      opts.level,
		Pattern:    pattern,
		NoColor:    opts.noColor,
		ShowSource: showSource,
	}, cmd.OutOrStdout())

	if len(paths) == 1 {
		fmt.Fprintf(errOut, "Log file: %s\n", paths[0])
	} else {
		fmt.Fprintf(errOut, "Log files: %s\n", strings.Join(paths, ", "))
	}
	if opts.follow {
		fmt.Fprintf(errOut, "Following... (Ctrl+C to stop)\n")
	}
	fmt.Fprintln(errOut, "---")

	if opts.follow {
		return runFollow(ctx, cmd.OutOrStdout(), errOut, viewer, paths)
	}

	var entries []logging.LogEntry
	if len(paths) == 1 {
		entries, err = viewer.Tail(paths[0], opts.lines)
	} else {
		entries, err = viewer.TailMultiple(paths, opts.lines)
	}
	if err != nil {
		return err
	}

	viewer.Print(entries)
	return nil
}

func runFollow(ctx context.Context, out, errOut io.Writer, viewer *logging.Viewer, paths []string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		if len(paths) == 1 {
			errCh <- viewer.Follow(ctx, paths[0], entries)
			return
		}
		errCh <- viewer.FollowMultiple(ctx, paths, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(out, viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(errOut, "\n---")
			fmt.Fprintln(errOut, "Stopped.")
			return nil
		}
	}
}
