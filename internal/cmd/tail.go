package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shellmux/shellmux/internal/logtail"
	"github.com/shellmux/shellmux/internal/session"
	"github.com/shellmux/shellmux/internal/util"
)

var tailCmd = &cobra.Command{
	Use:   "tail [flags] file",
	Short: "Tail a log file through a shell session",
	Long: `Print the last lines of a log file and optionally keep following it.
Reads go through a shell session (stat, cat, tail), so any file the shell
can read can be tailed, and lines are parsed for timestamps and severity.

Examples:
  # Last 50 lines
  shellmux tail /var/log/syslog

  # Follow, polling for appended lines
  shellmux tail -f /var/log/app.log

  # Bigger snapshot
  shellmux tail -n 200 /var/log/app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

var (
	tailLines    int
	tailFollow   bool
	tailInterval time.Duration
	tailWidth    int
)

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().IntVarP(&tailLines, "lines", "n", 0, "Lines in the initial snapshot (default from config)")
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", false, "Keep polling for appended lines")
	tailCmd.Flags().DurationVar(&tailInterval, "interval", time.Second, "Poll interval in follow mode")
	tailCmd.Flags().IntVarP(&tailWidth, "width", "w", 0, "Clip lines to this display width (0 for no clipping)")
}

// ANSI color codes for severity display
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

func levelColor(level string) string {
	switch level {
	case "debug":
		return colorGray
	case "warn":
		return colorYellow
	case "error":
		return colorRed
	default:
		return colorReset
	}
}

func formatEntry(entry logtail.LogEntry) string {
	var sb strings.Builder
	sb.WriteString(colorGray)
	sb.WriteString(entry.Timestamp.Format("15:04:05"))
	sb.WriteString(colorReset)
	sb.WriteString(" ")
	sb.WriteString(levelColor(entry.Level))
	sb.WriteString("[")
	sb.WriteString(strings.ToUpper(entry.Level))
	sb.WriteString("]")
	sb.WriteString(colorReset)
	sb.WriteString(" ")
	sb.WriteString(entry.Message)
	if tailWidth > 0 {
		return util.TruncateANSI(sb.String(), tailWidth)
	}
	return sb.String()
}

func runTail(cmd *cobra.Command, args []string) error {
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

	tail, entries, err := a.tailer.StartTailing(sess.ID, args[0], tailLines)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Println(formatEntry(entry))
	}
	if !tailFollow {
		return nil
	}

	for {
		time.Sleep(tailInterval)
		entries, err := a.tailer.GetIncrementalLogs(tail.ID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Println(formatEntry(entry))
		}
	}
}
