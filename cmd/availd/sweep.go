package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/viljemd-hub/channel-manager-sub000/internal/app"
	"github.com/viljemd-hub/channel-manager-sub000/internal/clock"
	"github.com/viljemd-hub/channel-manager-sub000/internal/config"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Release overdue soft holds across all units",
		Long: `Runs one expiry pass over every unit and prints a JSON summary.
With --cron the process stays resident and runs the pass on the given
schedule instead; without it, one pass per invocation fits a system
crontab entry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}
			if resident, _ := cmd.Flags().GetBool("cron"); resident {
				schedule, _ := cmd.Flags().GetString("schedule")
				if schedule == "" {
					schedule = cfg.SweepCron
				}
				return runSweepResident(cfg, schedule)
			}
			return runSweepOnce(cfg)
		},
	}
	cmd.Flags().Bool("cron", false, "stay resident and sweep on a schedule")
	cmd.Flags().String("schedule", "", "cron expression for --cron (default from config)")
	return cmd
}

func newSweep(cfg *config.Config) (*app.SweepService, func() error, error) {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	clk := clock.NewSystem()
	lifecycle := app.NewLifecycleService(store, clk, app.WithHoldTTL(cfg.HoldTTL()))
	return app.NewSweepService(store, lifecycle, clk, log.Default()), closeStore, nil
}

func runSweepOnce(cfg *config.Config) error {
	sweep, closeStore, err := newSweep(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	summary, err := sweep.Run(context.Background())
	printSummary(summary)
	if err != nil {
		return err
	}
	if !summary.OK {
		return errors.New("sweep finished with unit errors")
	}
	return nil
}

func runSweepResident(cfg *config.Config, schedule string) error {
	sweep, closeStore, err := newSweep(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	logger := log.Default()
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		summary, err := sweep.Run(context.Background())
		if err != nil {
			logger.Printf("WARN: sweep pass failed: %v", err)
			return
		}
		printSummary(summary)
	}); err != nil {
		return err
	}

	logger.Printf("sweep scheduler running (schedule=%q)", schedule)
	scheduler.Start()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	<-scheduler.Stop().Done()
	logger.Printf("sweep scheduler stopped")
	return nil
}

func printSummary(summary app.SweepSummary) {
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(summary)
}
