package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shellmux/shellmux/internal/bgproc"
	"github.com/shellmux/shellmux/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command...",
	Short: "Run a command in the background and stream its output",
	Long: `Start a command as a background process of a shell session, then poll
it at the configured interval, printing output as it accumulates, until the
command finishes or the timeout elapses.

Examples:
  # Stream a long build
  shellmux run -- make -j8 all

  # Give it an hour
  shellmux run --timeout 1h -- ./migrate --all`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runTimeout  time.Duration
	runInterval time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 0, "Command timeout (default from config)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "Poll interval (default from config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.store.CreateSession(session.CreateOptions{
		ID:    "cli",
		Shell: a.cfg.Backend.Shell,
		Cwd:   a.cfg.Backend.Cwd,
	})
	if err != nil {
		return err
	}
	resizeToTerminal(a.store, sess.ID)

	proc, err := a.poller.StartProcess(sess.ID, strings.Join(args, " "), bgproc.StartOptions{
		Timeout:  runTimeout,
		Interval: runInterval,
	})
	if err != nil {
		return err
	}

	interval := proc.Interval()
	for {
		result, err := a.poller.Poll(proc.ID, true)
		if err != nil {
			return err
		}
		if result.HasNewContent {
			fmt.Print(result.Output)
			if !strings.HasSuffix(result.Output, "\n") {
				fmt.Println()
			}
		}
		if result.Status != bgproc.StatusRunning {
			return reportProcessEnd(result)
		}
		time.Sleep(interval)
	}
}

func reportProcessEnd(result *bgproc.PollResult) error {
	switch result.Status {
	case bgproc.StatusCompleted:
		if result.ExitCode != nil && *result.ExitCode != 0 {
			return fmt.Errorf("command exited with code %d", *result.ExitCode)
		}
		return nil
	case bgproc.StatusStopped:
		fmt.Fprintln(os.Stderr, "process stopped")
		return nil
	default:
		return fmt.Errorf("process ended with status %s", result.Status)
	}
}
