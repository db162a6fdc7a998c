package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/models"
	"github.com/zulandar/beartank/internal/review"
	"github.com/zulandar/beartank/internal/submission"
	"github.com/zulandar/beartank/internal/telegraph"
)

func newSubmissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submission",
		Short: "Submission commands",
	}

	cmd.AddCommand(newSubmissionListCmd())
	cmd.AddCommand(newSubmissionShowCmd())
	return cmd
}

func newSubmissionListCmd() *cobra.Command {
	var (
		configPath string
		filters    submission.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions",
		Long:  "Lists submissions oldest first. Use --status submitted for the review queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			subs, err := submission.List(gormDB, filters)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No submissions found.")
				return nil
			}
			tw := newTable(out, table.Row{"ID", "Task", "Type", "Team", "By", "Status", "Points"})
			for _, s := range subs {
				team := "-"
				if s.TeamID != nil {
					team = *s.TeamID
				}
				points := "-"
				if s.Status == models.SubmissionApproved {
					points = telegraph.Bucks(int64(s.PointsAwarded))
				}
				tw.AppendRow(table.Row{s.ID, s.TaskTitle, s.TaskType, team, s.SubmittedBy, s.Status, points})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status (submitted, approved, needs_changes)")
	cmd.Flags().StringVar(&filters.TeamID, "team", "", "filter by team id")
	cmd.Flags().StringVar(&filters.UserID, "user", "", "filter by user id")
	cmd.Flags().StringVar(&filters.TaskID, "task", "", "filter by task id")
	return cmd
}

func newSubmissionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <submission-id>",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			s, err := submission.Get(gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submission %s\n", s.ID)
			fmt.Fprintf(out, "Task:     %s (%s)\n", s.TaskTitle, s.TaskType)
			fmt.Fprintf(out, "Status:   %s\n", s.Status)
			fmt.Fprintf(out, "By:       %s\n", s.SubmittedBy)
			if s.Content.Link != "" {
				fmt.Fprintf(out, "Link:     %s\n", s.Content.Link)
			}
			if s.Content.CompanyName != "" {
				fmt.Fprintf(out, "Company:  %s\n", s.Content.CompanyName)
			}
			if s.Content.TimelineNote != "" {
				fmt.Fprintf(out, "Timeline: %s\n", s.Content.TimelineNote)
			}
			if s.Content.Reflection != "" {
				fmt.Fprintf(out, "\n%s\n", s.Content.Reflection)
			}
			if s.Feedback.Note != "" {
				fmt.Fprintf(out, "\nFeedback (%s): %s\n", s.Feedback.Type, s.Feedback.Note)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}

func newReviewCmd() *cobra.Command {
	var (
		configPath string
		req        review.Request
	)

	cmd := &cobra.Command{
		Use:   "review <submission-id>",
		Short: "Approve a submission or request changes",
		Long: `Records a review decision (approved or needs_changes). Approval pays out
the task's Bear Bucks plus any --bonus, recomputes the team's stage progress
and unlocks the next stages. Every affected student is notified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SubmissionID = args[0]
			return runReview(cmd, configPath, req)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&req.Decision, "decision", "", "approved or needs_changes (required)")
	cmd.Flags().StringVar(&req.Feedback, "feedback", "", "note shown to the students")
	cmd.Flags().IntVar(&req.Bonus, "bonus", 0, "extra Bear Bucks on approval")
	cmd.Flags().StringVar(&req.ReviewerID, "reviewer", "", "reviewing teacher's user id (required)")
	cmd.MarkFlagRequired("decision")
	cmd.MarkFlagRequired("reviewer")
	return cmd
}

func runReview(cmd *cobra.Command, configPath string, req review.Request) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	broadcast := connectBroadcast(ctx, cfg, out)
	defer broadcast.Close()

	svc := &review.Service{DB: gormDB, Resolver: resolverFor(cfg), Broadcast: broadcast}
	res, err := svc.ReviewSubmission(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Submission %s is %s\n", res.SubmissionID, res.Status)
	if res.Status == models.SubmissionApproved {
		fmt.Fprintf(out, "Awarded: %s Bear Bucks\n", telegraph.Bucks(int64(res.PointsAwarded)))
	}
	if res.StageID != "" {
		fmt.Fprintf(out, "Stage %s: %s (%d%%)\n", res.StageID, res.TeamStageStatus, res.Progress)
	}
	if len(res.Unlocked) > 0 {
		fmt.Fprintf(out, "Unlocked: %s\n", strings.Join(res.Unlocked, ", "))
	}
	fmt.Fprintf(out, "Notified %d students\n", res.Notified)
	return nil
}
