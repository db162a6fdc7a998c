package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/ledger"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/telegraph"
)

func newLeaderboardCmd() *cobra.Command {
	var (
		configPath string
		teamID     string
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show company valuations",
		Long:  "Ranks every team by Bear Bucks earned. With --team, lists that team's ledger entries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if teamID != "" {
				entries, err := ledger.Entries(gormDB, models.EntityTeam, teamID)
				if err != nil {
					return err
				}
				total, err := ledger.Total(gormDB, models.EntityTeam, teamID)
				if err != nil {
					return err
				}
				tw := newTable(out, table.Row{"When", "Reason", "Source", "Amount"})
				tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.CreatedAt.Format("2006-01-02 15:04"), e.Reason, e.SourceID, telegraph.Bucks(int64(e.Amount))})
				}
				tw.AppendFooter(table.Row{"", "", "Total", telegraph.Bucks(total)})
				tw.Render()
				return nil
			}

			rows, err := ledger.Leaderboard(gormDB)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No teams yet.")
				return nil
			}
			tw := newTable(out, table.Row{"Rank", "Company", "Valuation"})
			tw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
			for _, r := range rows {
				tw.AppendRow(table.Row{r.Rank, r.CompanyName, telegraph.Bucks(r.Valuation)})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&teamID, "team", "", "show one team's ledger")
	cmd.AddCommand(newAnalyticsCmd())
	return cmd
}

func newAnalyticsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show class progress by stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			sum, err := curriculum.Analytics(gormDB, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Teams: %d  Overall progress: %d%%  Blocked: %d  Submitted today: %d\n",
				sum.Teams, sum.OverallProgress, sum.TeamsBlocked, sum.SubmissionsToday)
			tw := newTable(out, table.Row{"#", "Stage", "Complete", "Active", "Locked", "Avg progress"})
			for _, s := range sum.Stages {
				tw.AppendRow(table.Row{s.Order, s.Title, s.Complete, s.Active, s.Locked, fmt.Sprintf("%d%%", s.Progress)})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}
