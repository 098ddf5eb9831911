package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Gatehouse — recruitment cycle management",
		Long:  "Gatehouse runs an organization's recruitment pipeline: applications, reviews, rankings, cutoffs, interview slots, and events.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCycleCmd())
	cmd.AddCommand(newSlotCmd())
	cmd.AddCommand(newRankingCmd())
	cmd.AddCommand(newCutoffCmd())
	cmd.AddCommand(newOutboxCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gate %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
