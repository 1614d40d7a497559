package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ethanolivertroy/kpi-checker/internal/config"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/ethanolivertroy/kpi-checker/internal/reporter"
)

var (
	flagSchedule string
	flagNow      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompute the KPIs of a definition on a cron schedule",
	Long: `watch recomputes the KPIs on a cron schedule until interrupted. Every run
is stamped with the current date and, when an output file is set, appended to it.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&flagDir, "dir", "d", ".", "Directory relative source paths resolve against")
	watchCmd.Flags().StringVarP(&flagSchedule, "schedule", "s", "@daily", "Cron schedule (5 fields or descriptor such as @hourly)")
	watchCmd.Flags().BoolVar(&flagNow, "now", false, "Run once immediately before waiting for the schedule")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg.Append = cfg.OutputFile != ""

	// Load once so a broken definition fails before scheduling
	if _, err := config.Load(cfg.DefinitionFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func() {
		if err := watchRun(ctx, *cfg); err != nil {
			logger.WithError(err).Error("scheduled run failed")
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(flagSchedule, run); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", flagSchedule, err)
	}
	if flagNow {
		run()
	}

	c.Start()
	logger.WithField("schedule", flagSchedule).Info("watching")
	<-ctx.Done()

	// wait for a running computation to end
	<-c.Stop().Done()
	return nil
}

// watchRun computes one dated run. The definition is reloaded so edits are
// picked up without a restart.
func watchRun(ctx context.Context, cfg models.Config) error {
	def, err := config.Load(cfg.DefinitionFile)
	if err != nil {
		return err
	}
	cfg.Date = time.Now()

	evals, err := compute(ctx, &cfg, def)
	if err != nil {
		return err
	}
	output, err := reporter.Get(cfg.OutputFormat, &cfg).Report(evals)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return writeOutput(&cfg, output)
}
