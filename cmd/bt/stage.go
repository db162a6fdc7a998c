package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/curriculum"
)

func newStageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage management commands",
	}

	cmd.AddCommand(newStageListCmd())
	cmd.AddCommand(newStageCreateCmd())
	cmd.AddCommand(newStageStatusCmd())
	return cmd
}

func newStageListCmd() *cobra.Command {
	var (
		configPath string
		teamID     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages",
		Long:  "Lists the class stages in order. With --team, shows that team's status and progress for each stage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageList(cmd, configPath, teamID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&teamID, "team", "", "show progress for a team")
	return cmd
}

func runStageList(cmd *cobra.Command, configPath, teamID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	stages, err := curriculum.ListStages(gormDB)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(stages) == 0 {
		fmt.Fprintln(out, "No stages.")
		return nil
	}

	if teamID == "" {
		tw := newTable(out, table.Row{"#", "ID", "Title", "Points", "Unlocks"})
		for _, s := range stages {
			tw.AppendRow(table.Row{s.Order, s.ID, s.Title, s.PointsTotal, strings.Join(s.UnlockStageIDs, ", ")})
		}
		tw.Render()
		return nil
	}

	rows, err := curriculum.TeamStages(gormDB, teamID)
	if err != nil {
		return err
	}
	titles := make(map[string]string, len(stages))
	for _, s := range stages {
		titles[s.ID] = s.Title
	}
	tw := newTable(out, table.Row{"#", "Stage", "Status", "Progress"})
	for _, ts := range rows {
		tw.AppendRow(table.Row{ts.Order, titles[ts.StageID], ts.Status, fmt.Sprintf("%d%%", ts.Progress)})
	}
	tw.Render()
	return nil
}

func newStageCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       curriculum.CreateStageOpts
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a stage",
		Long:  "Creates a stage. Every existing team gets it as a locked stage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			s, err := curriculum.CreateStage(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created stage %s (order %d)\n", s.ID, s.Order)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&opts.ID, "id", "", "stage id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "stage title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "stage description")
	cmd.Flags().IntVar(&opts.Order, "order", 0, "position in the course (0 appends)")
	cmd.Flags().IntVar(&opts.PointsTotal, "points", 0, "points available in the stage")
	cmd.Flags().StringSliceVar(&opts.UnlockStageIDs, "unlocks", nil, "stage ids opened when this stage completes")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newStageStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <stage-id> <locked|active|complete>",
		Short: "Set a stage's template status",
		Long: `Sets the class-wide status of a stage. Marking a stage complete activates
the stages it explicitly unlocks.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			activated, err := curriculum.SetStageStatus(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stage %s is now %s\n", args[0], args[1])
			if len(activated) > 0 {
				fmt.Fprintf(out, "Activated: %s\n", strings.Join(activated, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}
