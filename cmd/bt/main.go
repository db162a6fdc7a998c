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

const defaultConfig = "beartank.yaml"

// verbose turns on SQL logging for every command.
var verbose bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bt",
		Short: "BEARTANK: classroom startup simulator",
		Long:  "BEARTANK runs a gamified entrepreneurship class: teams work through stages, submit tasks and earn Bear Bucks.",
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log SQL statements")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSchedulerCmd())
	cmd.AddCommand(newStageCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newTeamCmd())
	cmd.AddCommand(newSubmissionCmd())
	cmd.AddCommand(newReviewCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newLeaderboardCmd())
	cmd.AddCommand(newAnnounceCmd())
	cmd.AddCommand(newTeacherCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bt %s (commit: %s, built: %s)\n", Version, Commit, Date)
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
