package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/beartank/internal/bulletin"
	"github.com/zulandar/beartank/internal/review"
	"github.com/zulandar/beartank/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		port        int
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the BEARTANK API server",
		Long: `Starts the JSON API used by the student and teacher apps. Unless
--no-scheduler is given, the bulletin scheduler runs in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, noScheduler)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run scheduled publishing and digests")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, noScheduler bool) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	broadcast := connectBroadcast(ctx, cfg, out)
	defer broadcast.Close()

	svc := &review.Service{DB: gormDB, Resolver: resolverFor(cfg), Broadcast: broadcast}
	if n, err := svc.ReconcilePayouts(ctx); err != nil {
		fmt.Fprintf(out, "Warning: payout reconcile: %v\n", err)
	} else if n > 0 {
		fmt.Fprintf(out, "Issued %d missed payouts\n", n)
	}

	if !noScheduler {
		sched, err := bulletin.NewScheduler(bulletin.SchedulerOpts{
			DB:          gormDB,
			Broadcast:   broadcast,
			PublishCron: cfg.Scheduler.PublishCron,
			DigestCron:  cfg.Scheduler.DigestCron,
		})
		if err != nil {
			return err
		}
		go sched.Run(ctx)
		fmt.Fprintf(out, "Scheduler running (publish %q, digest %q)\n", cfg.Scheduler.PublishCron, cfg.Scheduler.DigestCron)
	}

	return server.Start(ctx, server.StartOpts{
		DB:        gormDB,
		Port:      port,
		JWTSecret: cfg.Server.JWTSecret,
		Resolver:  resolverFor(cfg),
		Broadcast: broadcast,
		Out:       out,
	})
}

func newSchedulerCmd() *cobra.Command {
	var (
		configPath string
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run scheduled announcements, side hustles and digests",
		Long: `Publishes scheduled announcements and newly opened side hustles on the
publish schedule, and posts the valuation leaderboard on the digest schedule.
With --once, runs the publish job a single time and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd, configPath, once)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to BEARTANK config file")
	cmd.Flags().BoolVar(&once, "once", false, "run the publish job once and exit")
	return cmd
}

func runScheduler(cmd *cobra.Command, configPath string, once bool) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	broadcast := connectBroadcast(ctx, cfg, out)
	defer broadcast.Close()

	sched, err := bulletin.NewScheduler(bulletin.SchedulerOpts{
		DB:          gormDB,
		Broadcast:   broadcast,
		PublishCron: cfg.Scheduler.PublishCron,
		DigestCron:  cfg.Scheduler.DigestCron,
	})
	if err != nil {
		return err
	}

	if once {
		announced, opened, err := sched.PublishTick(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Published %d announcements, announced %d side hustles\n", announced, opened)
		return nil
	}

	fmt.Fprintf(out, "Scheduler running (publish %q, digest %q)\n", cfg.Scheduler.PublishCron, cfg.Scheduler.DigestCron)
	sched.Run(ctx)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
