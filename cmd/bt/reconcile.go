package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/review"
)

func newReconcileCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Issue points for approved submissions that were never paid",
		Long: `Finds approved submissions with no ledger entry, for example after a
review failed partway, and issues their points. Safe to run repeatedly.
serve runs this once at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			svc := &review.Service{DB: gormDB, Resolver: resolverFor(cfg)}
			n, err := svc.ReconcilePayouts(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Issued %d payouts\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	return cmd
}
