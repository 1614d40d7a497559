package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ethanolivertroy/kpi-checker/internal/calculator"
	"github.com/ethanolivertroy/kpi-checker/internal/config"
	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
	"github.com/ethanolivertroy/kpi-checker/internal/reporter"
)

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Compute the KPIs of a definition",
	Args:  cobra.NoArgs,
	RunE:  runKPI,
}

func init() {
	kpiCmd.Flags().StringVarP(&flagDir, "dir", "d", ".", "Directory relative source paths resolve against")
	kpiCmd.Flags().BoolVar(&flagAppend, "append", false, "Append to the output file instead of overwriting it")
	kpiCmd.Flags().StringVar(&flagDate, "date", "", "Date stamped on the KPIs, YYYY-MM-DD (default: today)")
	kpiCmd.Flags().StringVar(&flagFailUnder, "fail-under", "", "Exit with code 1 if a KPI is below this level: PARTIALLYCONFORM, CONFORM")
	rootCmd.AddCommand(kpiCmd)
}

func runKPI(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	def, err := config.Load(cfg.DefinitionFile)
	if err != nil {
		return err
	}

	calc, err := calculator.New(cfg, def, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize calculator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	evals, err := calc.Run(ctx)
	if err != nil {
		return fmt.Errorf("kpi computation failed: %w", err)
	}

	// Generate report
	rep := reporter.Get(cfg.OutputFormat, cfg)
	output, err := rep.Report(evals)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if err := writeOutput(cfg, output); err != nil {
		return err
	}

	if below := belowLevel(evals, cfg.FailUnder); len(below) > 0 {
		for _, e := range below {
			logger.WithField("kpi", e.Snapshot.Name).WithField("scope", e.Scope).
				Warnf("conformity %s is below %s", e.Snapshot.Level, cfg.FailUnder)
		}
		return fmt.Errorf("%w: %d KPIs below %s", errBelowLevel, len(below), cfg.FailUnder)
	}
	return nil
}

// belowLevel returns the evaluations graded under the named level
func belowLevel(evals []calculator.Evaluation, name string) []calculator.Evaluation {
	if name == "" {
		return nil
	}
	threshold, err := kpi.ParseLevel(name)
	if err != nil {
		return nil
	}
	var out []calculator.Evaluation
	for _, e := range evals {
		if e.Snapshot.Level.Below(threshold) {
			out = append(out, e)
		}
	}
	return out
}
