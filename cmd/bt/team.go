package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/ledger"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/telegraph"
)

func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Team management commands",
	}

	cmd.AddCommand(newTeamListCmd())
	cmd.AddCommand(newTeamCreateCmd())
	cmd.AddCommand(newTeamAddMemberCmd())
	cmd.AddCommand(newTeamRequestsCmd())
	cmd.AddCommand(newTeamApproveCmd())
	cmd.AddCommand(newTeamRejectCmd())
	return cmd
}

func newTeamListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List teams with their valuation",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			teams, err := curriculum.ListTeams(gormDB)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(teams) == 0 {
				fmt.Fprintln(out, "No teams.")
				return nil
			}
			tw := newTable(out, table.Row{"ID", "Company", "Team", "Members", "Valuation"})
			for _, t := range teams {
				val, err := ledger.Total(gormDB, models.EntityTeam, t.ID)
				if err != nil {
					return err
				}
				tw.AppendRow(table.Row{t.ID, t.CompanyName, t.TeamName, len(t.Members), telegraph.Bucks(val)})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}

func newTeamCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       curriculum.CreateTeamOpts
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Form a team",
		Long:  "Forms a team from existing users. Members leave any team they were on.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := curriculum.CreateTeam(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created team %s (%s)\n", t.ID, t.CompanyName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&opts.CompanyName, "company", "", "company name (required)")
	cmd.Flags().StringVar(&opts.TeamName, "name", "", "team name (defaults to the company name)")
	cmd.Flags().StringSliceVar(&opts.MemberIDs, "member", nil, "member user id (repeatable)")
	cmd.MarkFlagRequired("company")
	return cmd
}

func newTeamAddMemberCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add-member <team-id> <email>",
		Short: "Add a student to a team by email",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			u, err := curriculum.AddMember(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to team %s\n", u.Email, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}

func newTeamRequestsCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List student team requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			reqs, err := curriculum.ListRequests(gormDB, status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(reqs) == 0 {
				fmt.Fprintf(out, "No %s requests.\n", status)
				return nil
			}
			tw := newTable(out, table.Row{"ID", "Company", "Requested by", "Members", "Created"})
			for _, r := range reqs {
				tw.AppendRow(table.Row{r.ID, r.CompanyName, r.RequestedBy, strings.Join(r.MemberEmails, ", "), r.CreatedAt.Format("2006-01-02 15:04")})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&status, "status", models.RequestPending, "filter by status (pending, approved, rejected)")
	return cmd
}

func newTeamApproveCmd() *cobra.Command {
	var (
		configPath string
		teacherID  string
	)

	cmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a team request and form the team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := curriculum.ApproveRequest(gormDB, args[0], teacherID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Formed team %s (%s) with %d members\n", t.ID, t.CompanyName, len(t.Members))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&teacherID, "teacher", "", "approving teacher's user id (required)")
	cmd.MarkFlagRequired("teacher")
	return cmd
}

func newTeamRejectCmd() *cobra.Command {
	var (
		configPath string
		teacherID  string
	)

	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a team request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := curriculum.RejectRequest(gormDB, args[0], teacherID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected request %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&teacherID, "teacher", "", "rejecting teacher's user id (required)")
	cmd.MarkFlagRequired("teacher")
	return cmd
}
