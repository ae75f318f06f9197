package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shellmux/shellmux/internal/session"
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- command...",
	Short: "Run a command in a fresh shell session",
	Long: `Run a single command through the session command protocol and print
its output. The session's PTY is sized to match the current terminal, so
column-sensitive tools render the way they would interactively.

Examples:
  # Run a command
  shellmux exec -- ls -la

  # Bound the runtime; a timed-out command reports the timeout, not output
  shellmux exec --timeout 10s -- make build

  # Run under a specific shell and directory
  shellmux exec --shell /bin/zsh --cwd /srv/app -- git status

  # Emit the full result as JSON
  shellmux exec --json -- uname -a`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

var (
	execTimeout time.Duration
	execShell   string
	execCwd     string
	execJSON    bool
)

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().DurationVarP(&execTimeout, "timeout", "t", 0, "Command timeout (default from config)")
	execCmd.Flags().StringVar(&execShell, "shell", "", "Shell to run the command under")
	execCmd.Flags().StringVar(&execCwd, "cwd", "", "Working directory for the session")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "Print the result as JSON")
}

func runExec(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.store.CreateSession(session.CreateOptions{
		ID:    "cli",
		Shell: pickShell(a),
		Cwd:   pickCwd(a),
	})
	if err != nil {
		return err
	}
	resizeToTerminal(a.store, sess.ID)

	result, err := sess.ExecuteCommand(strings.Join(args, " "), execTimeout)
	if err != nil {
		return err
	}

	if execJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Output != "" {
		fmt.Println(result.Output)
	}
	if result.TimedOut {
		return fmt.Errorf("command timed out after %s", result.Duration.Round(time.Millisecond))
	}
	if !result.Success {
		return fmt.Errorf("command exited with code %d", *result.ExitCode)
	}
	return nil
}

func pickShell(a *app) string {
	if execShell != "" {
		return execShell
	}
	return a.cfg.Backend.Shell
}

func pickCwd(a *app) string {
	if execCwd != "" {
		return execCwd
	}
	return a.cfg.Backend.Cwd
}

// resizeToTerminal matches the session PTY to the controlling terminal when
// stdout is one; otherwise the configured default size stands.
func resizeToTerminal(store *session.Store, sessionID string) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		return
	}
	_ = store.ResizeSession(sessionID, uint16(cols), uint16(rows))
}
