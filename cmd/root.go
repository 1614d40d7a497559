package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethanolivertroy/kpi-checker/internal/kpi"
	"github.com/ethanolivertroy/kpi-checker/internal/models"
	"github.com/ethanolivertroy/kpi-checker/internal/reporter"
)

var (
	flagConfig    string
	flagDir       string
	flagOutput    string
	flagFormat    string
	flagDelimiter string
	flagAppend    bool
	flagDate      string
	flagWorkers   int
	flagFailUnder string
	flagNoCache   bool
	flagTimeout   int
	flagVerbose   bool
)

var logger = logrus.New()

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kpi-checker",
	Short: "Compute security KPIs over inventories and vulnerability catalogs",
	Long: `kpi-checker computes key performance indicators over record sources:
CSV or JSON exports of an inventory, the CISA Known Exploited Vulnerabilities
catalog, or the requirements of a go.mod file.

A definition file (YAML, TOML or JSON) declares the sources, the named filters
and scopes drawn from them, and the KPIs: for every scope of a KPI, the share
of records passing its controls, graded NOTCONFORM, PARTIALLYCONFORM or CONFORM.

Examples:
  # Compute the KPIs of a definition
  kpi-checker kpi --config kpis.yaml --dir ./exports

  # Append today's values to a CSV export
  kpi-checker kpi --config kpis.yaml --format csv --output kpis.csv --append

  # Fail when a KPI is not at least partially conform
  kpi-checker kpi --config kpis.yaml --fail-under PARTIALLYCONFORM

  # Compare dated snapshots
  kpi-checker history --config kpis.yaml ./snapshots/2024-03-31 ./snapshots/2024-06-30

  # Recompute every morning
  kpi-checker watch --config kpis.yaml --schedule "0 7 * * *" --format csv --output kpis.csv`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if flagVerbose {
			logger.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	os.Exit(exitCode(rootCmd.Execute()))
}

// errBelowLevel is returned by kpi --fail-under when a KPI is below the threshold
var errBelowLevel = errors.New("conformity below threshold")

// exitCode maps a command error to the process status: 1 for a failed
// conformity threshold, 2 for any other error
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errBelowLevel):
		return 1
	}
	return 2
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "KPI definition file (yaml, toml or json)")
	pf.StringVarP(&flagOutput, "output", "o", "", "Output file path (default: stdout)")
	pf.StringVarP(&flagFormat, "format", "f", "terminal", "Output format: terminal, json, csv")
	pf.StringVar(&flagDelimiter, "delimiter", "|", "CSV output delimiter")
	pf.IntVarP(&flagWorkers, "workers", "w", 5, "KPIs computed concurrently")
	pf.BoolVar(&flagNoCache, "no-cache", false, "Disable remote catalog caching")
	pf.IntVar(&flagTimeout, "timeout", 60, "HTTP request timeout in seconds")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log debug messages")
	rootCmd.MarkPersistentFlagRequired("config")
}

// buildConfig reads the flags shared by every command
func buildConfig() (*models.Config, error) {
	config := models.DefaultConfig()
	config.DefinitionFile = flagConfig
	config.DataDir = flagDir
	config.OutputFormat = flagFormat
	config.OutputFile = flagOutput
	config.Append = flagAppend
	config.Workers = flagWorkers
	config.NoCache = flagNoCache
	config.Timeout = time.Duration(flagTimeout) * time.Second
	config.FailUnder = flagFailUnder

	if !slices.Contains(reporter.Formats, config.OutputFormat) {
		return nil, fmt.Errorf("unknown format %q, expected one of %v", config.OutputFormat, reporter.Formats)
	}
	if d := []rune(flagDelimiter); len(d) == 1 {
		config.Delimiter = d[0]
	} else {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", flagDelimiter)
	}
	if flagDate != "" {
		d, err := time.ParseInLocation(kpi.DateLayout, flagDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", flagDate, err)
		}
		config.Date = d
	}
	if config.FailUnder != "" {
		if _, err := kpi.ParseLevel(config.FailUnder); err != nil {
			return nil, err
		}
	}
	if config.DataDir == "" {
		config.DataDir = "."
	}
	return config, nil
}

// writeOutput prints the report or writes it to the configured file
func writeOutput(config *models.Config, output []byte) error {
	if config.OutputFile == "" {
		fmt.Print(string(output))
		return nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if config.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(config.OutputFile, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if _, err := f.Write(output); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", config.OutputFile)
	return nil
}
