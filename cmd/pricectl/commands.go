package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"CropCast/internal/di"
	"CropCast/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "pricectl",
		Short:         "Collect, clean, store and train on mandi commodity prices",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Fetch records from the open-data API and write them as CSV",
		RunE:  runCollect,
	}
	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Normalize and clean a raw price CSV",
		RunE:  runClean,
	}
	trainCmd = &cobra.Command{
		Use:   "train",
		Short: "Fit one forecast model per series and write the artifacts",
		RunE:  runTrain,
	}
	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Clean a price CSV and send the records to the configured backend",
		RunE:  runIngest,
	}
	consumeCmd = &cobra.Command{
		Use:   "consume",
		Short: "Store record batches from Kafka into ClickHouse until interrupted",
		RunE:  runConsume,
	}
)

// Per-command flags.
var (
	inPath, outPath  string
	dialectName      string
	dialectFile      string
	rawOutput        bool
	commodity, state string
	modelsDir        string
	fromStore        bool
	fromDate, toDate string
	backendType      string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (empty for defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	collectCmd.Flags().StringVarP(&outPath, "out", "o", "", "output CSV path")
	collectCmd.Flags().BoolVar(&rawOutput, "raw", false, "write fetched records without cleaning")
	collectCmd.Flags().StringVar(&commodity, "commodity", "", "only keep this commodity")
	collectCmd.Flags().StringVar(&state, "state", "", "only keep this state")
	_ = collectCmd.MarkFlagRequired("out")

	cleanCmd.Flags().StringVarP(&inPath, "in", "i", "", "raw CSV path")
	cleanCmd.Flags().StringVarP(&outPath, "out", "o", "", "cleaned CSV path")
	cleanCmd.Flags().StringVar(&dialectName, "dialect", "", "override cleaning.dialect")
	cleanCmd.Flags().StringVar(&dialectFile, "dialect-file", "", "YAML dialect description")
	_ = cleanCmd.MarkFlagRequired("in")
	_ = cleanCmd.MarkFlagRequired("out")

	trainCmd.Flags().StringVarP(&inPath, "in", "i", "", "cleaned CSV path")
	trainCmd.Flags().BoolVar(&fromStore, "from-store", false, "read series from ClickHouse instead of a CSV")
	trainCmd.Flags().StringVar(&fromDate, "from", "", "first date (YYYY-MM-DD) read from the store")
	trainCmd.Flags().StringVar(&toDate, "to", "", "last date (YYYY-MM-DD) read from the store")
	trainCmd.Flags().StringVar(&modelsDir, "models-dir", "", "override models.dir")
	trainCmd.MarkFlagsMutuallyExclusive("in", "from-store")
	trainCmd.MarkFlagsOneRequired("in", "from-store")

	ingestCmd.Flags().StringVarP(&inPath, "in", "i", "", "price CSV path")
	ingestCmd.Flags().StringVar(&dialectName, "dialect", "", "override cleaning.dialect")
	ingestCmd.Flags().StringVar(&dialectFile, "dialect-file", "", "YAML dialect description")
	ingestCmd.Flags().StringVar(&backendType, "backend", "", "override backend.type")
	_ = ingestCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(collectCmd, cleanCmd, trainCmd, ingestCmd, consumeCmd)
}

// loadConfig reads the config and applies the flag overrides common to all commands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if dialectName != "" {
		cfg.Cleaning.Dialect = dialectName
	}
	if dialectFile != "" {
		cfg.Cleaning.DialectFile = dialectFile
	}
	if backendType != "" {
		cfg.Backend.Type = backendType
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	return cfg, nil
}

// withPipeline builds the offline components and runs fn with a context
// cancelled on SIGINT/SIGTERM.
func withPipeline(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, p *di.Pipeline) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := di.InitializePipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, p)
}
