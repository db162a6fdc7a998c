package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/curriculum"
	"github.com/zulandar/beartank/internal/models"
)

func newTeacherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teacher",
		Short: "Teacher account commands",
	}

	cmd.AddCommand(newTeacherListCmd())
	cmd.AddCommand(newTeacherActivateCmd())
	return cmd
}

func newTeacherListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List teacher accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			users, err := curriculum.ListUsers(gormDB, curriculum.UserFilters{Role: models.RoleTeacher, Status: status})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No teachers.")
				return nil
			}
			tw := newTable(out, table.Row{"ID", "Email", "Name", "Status"})
			for _, u := range users {
				tw.AppendRow(table.Row{u.ID, u.Email, u.DisplayName, u.Status})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, active)")
	return cmd
}

func newTeacherActivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "activate <user-id>",
		Short: "Approve a pending teacher account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			u, err := curriculum.ActivateTeacher(gormDB, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Teacher %s (%s) is active\n", u.ID, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}
