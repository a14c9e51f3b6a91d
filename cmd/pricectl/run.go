package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"CropCast/internal/di"
	"CropCast/internal/domain/models"
	"CropCast/internal/services/normalize"
	"CropCast/internal/services/pricefile"
	"CropCast/internal/usecase"
	applogger "CropCast/pkg/logger"
	"CropCast/pkg/util"

	"github.com/spf13/cobra"
)

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if commodity != "" {
		cfg.Collector.Commodity = commodity
	}
	if state != "" {
		cfg.Collector.State = state
	}
	cfg.Cleaning.Dialect = normalize.DialectOGDAPI
	cfg.Cleaning.DialectFile = ""

	return withPipeline(cmd, cfg, func(ctx context.Context, p *di.Pipeline) error {
		src, err := di.ProvideCollector(cfg, p.Logger)
		if err != nil {
			return err
		}
		recs, fetchErr := src.Fetch(ctx)
		if fetchErr != nil {
			if len(recs) == 0 {
				return fmt.Errorf("collect: %w", fetchErr)
			}
			p.Logger.Warn("collection stopped early, keeping partial data",
				applogger.Int("records", len(recs)), applogger.Error(fetchErr))
		}

		if rawOutput {
			return writeRaw(outPath, recs)
		}
		cleaned, _, err := p.Preparer.PrepareRecords(ctx, "api", recs)
		if err != nil {
			return err
		}
		if err := pricefile.WriteCleanedFile(outPath, cleaned); err != nil {
			return err
		}
		p.Logger.Info("collected", applogger.String("out", outPath), applogger.Int("records", len(cleaned)))
		return nil
	})
}

func writeRaw(path string, recs []models.RawRecord) error {
	seen := make(map[string]struct{})
	for _, r := range recs {
		for c := range r {
			seen[c] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for c := range seen {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pricefile.WriteRaw(f, columns, recs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runClean(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// clean only writes a file.
	cfg.Backend.Type = usecase.BackendNone

	return withPipeline(cmd, cfg, func(ctx context.Context, p *di.Pipeline) error {
		rows, err := pricefile.ReadFile(inPath)
		if err != nil {
			return err
		}
		recs, report, err := p.Preparer.PrepareTable(ctx, filepath.Base(inPath), rows)
		if err != nil {
			return err
		}
		if err := pricefile.WriteCleanedFile(outPath, recs); err != nil {
			return err
		}
		p.Logger.Info("cleaned",
			applogger.String("out", outPath),
			applogger.Int("rows_in", report.Input),
			applogger.Int("rows_out", report.Output))
		return nil
	})
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend.Type == usecase.BackendNone {
		return errors.New("ingest needs backend.type kafka or clickhouse")
	}

	return withPipeline(cmd, cfg, func(ctx context.Context, p *di.Pipeline) error {
		rows, err := pricefile.ReadFile(inPath)
		if err != nil {
			return err
		}
		recs, _, err := p.Preparer.PrepareTable(ctx, filepath.Base(inPath), rows)
		if err != nil {
			return err
		}
		p.Logger.Info("ingested",
			applogger.String("backend", p.Sink.Backend()),
			applogger.Int("records", len(recs)))
		return nil
	})
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if modelsDir != "" {
		cfg.Models.Dir = modelsDir
	}
	cfg.Backend.Type = usecase.BackendNone
	if !fromStore {
		cfg.Cleaning.Dialect = normalize.DialectCleanedCSV
		cfg.Cleaning.DialectFile = ""
	}
	from, to, err := dateRange(fromDate, toDate)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Models.Dir, 0o755); err != nil {
		return fmt.Errorf("model dir: %w", err)
	}

	return withPipeline(cmd, cfg, func(ctx context.Context, p *di.Pipeline) error {
		var (
			res *usecase.TrainResult
			err error
		)
		if fromStore {
			if p.Store == nil {
				return errors.New("train --from-store needs clickhouse.host")
			}
			res, err = p.Trainer.TrainFromStore(ctx, p.Store, from, to)
		} else {
			var recs []models.CanonicalRecord
			rows, rerr := pricefile.ReadFile(inPath)
			if rerr != nil {
				return rerr
			}
			recs, _, err = p.Preparer.PrepareTable(ctx, filepath.Base(inPath), rows)
			if err != nil {
				return err
			}
			res, err = p.Trainer.Train(ctx, models.SeriesFromRecords(recs))
		}
		if err != nil {
			return err
		}
		for key, reason := range res.Skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", key, reason)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %d models to %s in %s\n", len(res.Saved), cfg.Models.Dir, res.Took.Round(time.Millisecond))
		return nil
	})
}

func runConsume(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("consume needs kafka.brokers")
	}
	// Records read from Kafka are stored, never re-published.
	cfg.Backend.Type = usecase.BackendNone

	return withPipeline(cmd, cfg, func(ctx context.Context, p *di.Pipeline) error {
		if p.Store == nil {
			return errors.New("consume needs clickhouse.host")
		}
		consumer, err := di.ProvideKafkaConsumer(cfg, p.Logger, p.Prometheus)
		if err != nil {
			return err
		}
		consumer.RegisterHandler(di.ProvideKafkaRecordsHandler(cfg, p.Store, p.Metrics))
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		p.Logger.Info("consuming", applogger.String("topic", cfg.Kafka.Topic))

		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return consumer.Stop(stopCtx)
	})
}

// dateRange parses optional ISO bounds. Empty bounds stay zero, meaning open.
func dateRange(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	if from != "" {
		d, ok := util.ParseDate(models.DateLayout, from)
		if !ok {
			return f, t, fmt.Errorf("invalid --from %q", from)
		}
		f = d
	}
	if to != "" {
		d, ok := util.ParseDate(models.DateLayout, to)
		if !ok {
			return f, t, fmt.Errorf("invalid --to %q", to)
		}
		t = d
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		return f, t, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return f, t, nil
}
