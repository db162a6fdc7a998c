package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/bulletin"
	"github.com/zulandar/beartank/internal/telegraph"
)

func newAnnounceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Class announcement commands",
	}

	cmd.AddCommand(newAnnounceCreateCmd())
	cmd.AddCommand(newAnnounceListCmd())
	cmd.AddCommand(newAnnounceDeleteCmd())
	return cmd
}

func newAnnounceCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       bulletin.CreateOpts
		at         string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post an announcement",
		Long: `Posts an announcement to every active student. With --at (RFC 3339),
the announcement waits until the scheduler publishes it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				opts.ScheduledFor = &t
			}
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			a, err := bulletin.Create(gormDB, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.PublishedAt == nil {
				fmt.Fprintf(out, "Scheduled announcement %s for %s\n", a.ID, a.ScheduledFor.Format(time.RFC1123))
				return nil
			}
			fmt.Fprintf(out, "Published announcement %s\n", a.ID)

			ctx, cancel := signalContext(cmd)
			defer cancel()
			broadcast := connectBroadcast(ctx, cfg, out)
			defer broadcast.Close()
			broadcast.Publish(ctx, telegraph.OutboundMessage{
				Events: []telegraph.FormattedEvent{telegraph.FormatAnnouncement(a.Title, a.Body)},
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().StringVar(&opts.Title, "title", "", "announcement title (required)")
	cmd.Flags().StringVar(&opts.Body, "body", "", "announcement text")
	cmd.Flags().StringVar(&opts.CreatedBy, "by", "", "posting teacher's user id")
	cmd.Flags().StringVar(&at, "at", "", "publish time")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newAnnounceListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List announcements, including scheduled ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			list, err := bulletin.List(gormDB, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No announcements.")
				return nil
			}
			tw := newTable(out, table.Row{"ID", "Title", "Published", "Scheduled for"})
			for _, a := range list {
				pub, sched := "-", "-"
				if a.PublishedAt != nil {
					pub = a.PublishedAt.Format("2006-01-02 15:04")
				}
				if a.ScheduledFor != nil {
					sched = a.ScheduledFor.Format("2006-01-02 15:04")
				}
				tw.AppendRow(table.Row{a.ID, a.Title, pub, sched})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}

func newAnnounceDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <announcement-id>",
		Short: "Delete an announcement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := bulletin.Delete(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted announcement %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}
