package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/telegraph"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskCreateCmd())
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		filters    curriculum.TaskFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tasks, err := curriculum.ListTasks(gormDB, filters)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			tw := newTable(out, table.Row{"ID", "Stage", "Title", "Type", "Points", "Bonus"})
			for _, t := range tasks {
				stage := "-"
				if t.StageID != nil {
					stage = *t.StageID
				}
				if t.Category == models.CategorySideHustle {
					stage = "side hustle"
				}
				tw.AppendRow(table.Row{t.ID, stage, t.Title, t.Type, telegraph.Bucks(int64(t.Points)), t.IsBonus})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&filters.StageID, "stage", "", "filter by stage id")
	cmd.Flags().StringVar(&filters.Category, "category", "", "filter by category (side_hustle)")
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       curriculum.CreateTaskOpts
		sideHustle bool
		start, end string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task or side hustle",
		Long: `Creates a task inside a stage. With --side-hustle, creates a standalone
bonus task open between --start and --end (RFC 3339 times).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sideHustle {
				opts.Category = models.CategorySideHustle
				s, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				e, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				opts.StartAt, opts.EndAt = &s, &e
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := curriculum.CreateTask(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s (%s Bear Bucks)\n", t.ID, telegraph.Bucks(int64(t.Points)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&opts.StageID, "stage", "", "stage id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "task description")
	cmd.Flags().StringVar(&opts.Type, "type", models.TaskTeam, "task type (team, individual)")
	cmd.Flags().IntVar(&opts.Points, "points", 0, "Bear Bucks awarded on approval")
	cmd.Flags().BoolVar(&opts.IsBonus, "bonus", false, "exclude from stage progress")
	cmd.Flags().IntVar(&opts.Order, "order", 0, "position within the stage")
	cmd.Flags().BoolVar(&sideHustle, "side-hustle", false, "create a time-boxed side hustle")
	cmd.Flags().StringVar(&start, "start", "", "side hustle opening time")
	cmd.Flags().StringVar(&end, "end", "", "side hustle closing time")
	cmd.MarkFlagRequired("title")
	return cmd
}
