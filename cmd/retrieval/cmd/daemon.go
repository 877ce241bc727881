package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/daemon"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/logging"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon that keeps corpora warm between searches",
		Long: `daemon keeps a corpus's text index and vector collections loaded in
memory behind a Unix socket, so repeated CLI searches skip reloading the
manifest. Subcommands: start, stop, status.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground instead of forking a background process")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running and what it has loaded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit status as JSON")
	return cmd
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	cfg := daemon.DefaultConfig()
	client := daemon.NewClient(cfg)

	if client.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "daemon already running")
		return nil
	}

	if foreground {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("cmd: set up logging: %w", err)
		}
		defer cleanup()
		slog.SetDefault(logger)

		d, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("cmd: create daemon: %w", err)
		}
		return d.Start(ctx)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cmd: resolve executable: %w", err)
	}

	child := exec.Command(execPath, "daemon", "start", "--foreground")
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("cmd: fork daemon: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()

	for i := 0; i < 20; i++ {
		select {
		case err := <-exited:
			if err != nil {
				return fmt.Errorf("cmd: daemon exited before becoming ready: %w", err)
			}
			return fmt.Errorf("cmd: daemon exited before becoming ready")
		case <-time.After(100 * time.Millisecond):
		}
		if client.IsRunning() {
			fmt.Fprintf(cmd.OutOrStdout(), "daemon started (pid %d)\n", child.Process.Pid)
			return nil
		}
	}
	return fmt.Errorf("cmd: daemon did not become ready in time")
}

func runDaemonStop(cmd *cobra.Command) error {
	cfg := daemon.DefaultConfig()
	pf := daemon.NewPIDFile(cfg.PIDPath)

	pid, err := pf.Read()
	if err != nil {
		return fmt.Errorf("cmd: daemon not running: %w", err)
	}

	if err := pf.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("cmd: signal daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		if !pf.IsRunning() {
			fmt.Fprintf(cmd.OutOrStdout(), "daemon stopped (pid %d)\n", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := pf.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("cmd: force-kill daemon: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "daemon force-killed (pid %d)\n", pid)
	return nil
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg := daemon.DefaultConfig()
	client := daemon.NewClient(cfg)

	if !client.IsRunning() {
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(daemon.StatusResult{Running: false})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "daemon not running")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("cmd: query daemon status: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "PID:            %d\n", status.PID)
	fmt.Fprintf(cmd.OutOrStdout(), "Uptime:         %s\n", status.Uptime)
	fmt.Fprintf(cmd.OutOrStdout(), "Family:         %s (%s)\n", status.FamilyType, status.FamilyStatus)
	fmt.Fprintf(cmd.OutOrStdout(), "Corpora loaded: %d\n", status.CorporaLoaded)
	fmt.Fprintf(cmd.OutOrStdout(), "Socket:         %s\n", cfg.SocketPath)
	return nil
}
