package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show configured session settings",
	Long: `Show the effective session configuration: limits, buffer sizes, and
protocol timing, after config file and environment overrides are applied.`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "max sessions:\t%d\n", a.cfg.Session.MaxSessions)
	fmt.Fprintf(w, "output buffer:\t%d bytes\n", a.cfg.Session.OutputBufferSize)
	fmt.Fprintf(w, "settle delay:\t%s\n", a.cfg.Session.SettleDelay())
	fmt.Fprintf(w, "write pacing:\t%s\n", a.cfg.Session.WritePacing())
	fmt.Fprintf(w, "command timeout:\t%s\n", a.cfg.Session.DefaultTimeout())
	fmt.Fprintf(w, "pty size:\t%dx%d\n", a.cfg.Session.Cols, a.cfg.Session.Rows)
	fmt.Fprintf(w, "default shell:\t%s\n", a.backend.DefaultShell())
	return w.Flush()
}
