package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"formbuilder/internal/repository/selector"

	"github.com/spf13/cobra"
)

var modeCmd = &cobra.Command{
	Use:   "mode [remote|local]",
	Short: "Show or change the persistence backend",
	Long: `Without an argument prints the backend in use. With one, stores it as the
default for later runs. Data is not copied between backends.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMode,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check both backends are reachable",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(modeCmd, statusCmd)
}

func runMode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		fmt.Fprintln(out, current.forms.Mode())
		return nil
	}

	mode, err := selector.ParseMode(args[0])
	if err != nil {
		return err
	}
	if err := current.forms.SetMode(mode); err != nil {
		return err
	}
	if err := current.store.Set(cmd.Context(), ModeKey, string(mode)); err != nil {
		return fmt.Errorf("saving mode: %w", err)
	}
	fmt.Fprintf(out, "Using %s backend\n", mode)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	statuses, err := current.forms.Health(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKEND\tACTIVE\tSTATUS\tLATENCY")
	for _, s := range statuses {
		active := ""
		if s.Active {
			active = "*"
		}
		state := "ok"
		if !s.OK {
			state = s.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Mode, active, state, s.Latency.Round(time.Microsecond))
	}
	return tw.Flush()
}
