package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethanolivertroy/kpi-checker/internal/calculator"
	"github.com/ethanolivertroy/kpi-checker/internal/config"
	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/ethanolivertroy/kpi-checker/internal/reporter"
)

var historyCmd = &cobra.Command{
	Use:   "history SNAPSHOT_DIR...",
	Short: "Compare KPIs computed over dated snapshots",
	Long: `history computes the KPIs of a definition once per snapshot directory and
prints the tendency of every KPI scope between successive dates.

Each directory must be named after its date (YYYY-MM-DD) and holds the source
files of that date.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

// snapshotDate reads the date a snapshot directory is named after
func snapshotDate(dir string) (time.Time, error) {
	name := filepath.Base(filepath.Clean(dir))
	d, err := time.ParseInLocation(kpi.DateLayout, name, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("snapshot %q is not named YYYY-MM-DD", dir)
	}
	return d, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	def, err := config.Load(cfg.DefinitionFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runs := make([][]calculator.Evaluation, 0, len(args))
	for _, dir := range args {
		date, err := snapshotDate(dir)
		if err != nil {
			return err
		}

		runCfg := *cfg
		runCfg.DataDir = dir
		runCfg.Date = date

		evals, err := compute(ctx, &runCfg, def)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", dir, err)
		}
		runs = append(runs, evals)
	}

	histories, err := calculator.BuildHistories(runs...)
	if err != nil {
		logger.WithError(err).Warn("some histories could not be built")
	}

	rep := reporter.Get(cfg.OutputFormat, cfg)
	output, err := rep.ReportHistory(histories)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return writeOutput(cfg, output)
}

func compute(ctx context.Context, cfg *models.Config, def *models.Definition) ([]calculator.Evaluation, error) {
	calc, err := calculator.New(cfg, def, logger.WithField("date", cfg.Date.Format(kpi.DateLayout)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize calculator: %w", err)
	}
	return calc.Run(ctx)
}
