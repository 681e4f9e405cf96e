package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/PriceEngine/internal/config"
	"github.com/MikeSquared-Agency/PriceEngine/internal/dataset"
	"github.com/MikeSquared-Agency/PriceEngine/internal/hermes"
	"github.com/MikeSquared-Agency/PriceEngine/internal/metrics"
	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
	"github.com/MikeSquared-Agency/PriceEngine/internal/store"
	"github.com/MikeSquared-Agency/PriceEngine/internal/training"
)

type trainFlags struct {
	data        string
	fromDB      bool
	since       time.Duration
	weights     string
	out         string
	ridge       float64
	valSplit    float64
	seed        uint64
	metricsFile string
	noPublish   bool
}

func newTrainCmd(configPath *string) *cobra.Command {
	f := &trainFlags{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit alpha, beta and gamma_multiplier on historical outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()
			applyTrainDefaults(cmd, f, cfg)
			return runTrain(cmd, f, cfg, logger)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.data, "data", "", "dataset file (.csv, .json or .xlsx)")
	fl.BoolVar(&f.fromDB, "from-db", false, "read outcomes from the database instead of a file")
	fl.DurationVar(&f.since, "since", 0, "with --from-db, only use outcomes observed within this window")
	fl.StringVar(&f.weights, "weights", "", "prior weights file (default: --out)")
	fl.StringVar(&f.out, "out", "", "output weights file (default: weights.path from config)")
	fl.Float64Var(&f.ridge, "ridge", training.DefaultRidgeLambda, "ridge lambda (L2)")
	fl.Float64Var(&f.valSplit, "val-split", training.DefaultValSplit, "validation split fraction")
	fl.Uint64Var(&f.seed, "seed", training.DefaultSeed, "shuffle seed")
	fl.StringVar(&f.metricsFile, "metrics-textfile", "", "write training gauges in Prometheus text format to this file")
	fl.BoolVar(&f.noPublish, "no-publish", false, "do not announce the new model on hermes")
	cmd.MarkFlagsMutuallyExclusive("data", "from-db")
	cmd.MarkFlagsOneRequired("data", "from-db")
	return cmd
}

// applyTrainDefaults fills flags the user did not set from the config.
func applyTrainDefaults(cmd *cobra.Command, f *trainFlags, cfg *config.Config) {
	fl := cmd.Flags()
	if !fl.Changed("ridge") {
		f.ridge = cfg.Training.RidgeLambda
	}
	if !fl.Changed("val-split") {
		f.valSplit = cfg.Training.ValSplit
	}
	if !fl.Changed("seed") {
		f.seed = cfg.Training.Seed
	}
	if f.out == "" {
		f.out = cfg.Weights.Path
	}
	if f.weights == "" {
		f.weights = f.out
	}
}

func runTrain(cmd *cobra.Command, f *trainFlags, cfg *config.Config, logger *slog.Logger) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records, source, err := loadRecords(ctx, f, cfg)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "source", source, "records", len(records))

	prior, err := pricing.LoadWeights(f.weights)
	if err != nil {
		return err
	}

	res, err := training.Train(records, prior, training.Options{
		RidgeLambda: f.ridge,
		ValSplit:    f.valSplit,
		Seed:        f.seed,
		Dataset:     source,
	})
	if err != nil {
		var abort *training.AbortError
		if errors.As(err, &abort) {
			logger.Error("training aborted, weights left untouched", "reason", abort.Reason, "error", abort.Err)
		}
		return err
	}
	if res.EvalFailures > 0 {
		logger.Warn("validation rows failed to evaluate", "count", res.EvalFailures)
	}

	if err := training.WriteWeights(f.out, res.Weights); err != nil {
		return err
	}
	res.WriteSummary(cmd.OutOrStdout(), f.out)

	m := res.Metadata
	if f.metricsFile != "" {
		reg := prometheus.NewRegistry()
		rec := metrics.New(reg)
		rec.SetTraining(m.MetricsVal.MAE, map[string]int{
			"total":    m.RowsTotal,
			"parsed":   m.RowsParsed,
			"train":    m.RowsTrain,
			"val":      m.RowsVal,
			"features": m.RowsFeatures,
		})
		rec.SetActiveWeights(res.Weights.ModelVersion, res.Weights.Fingerprint())
		if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
			logger.Warn("failed to write metrics textfile", "path", f.metricsFile, "error", err)
		}
	}

	if !f.noPublish && cfg.Hermes.URL != "" {
		publishTrained(ctx, cfg, logger, hermes.ModelTrainedEvent{
			ModelVersion: res.Weights.ModelVersion,
			Path:         absPath(f.out),
			Dataset:      source,
			RowsTrain:    m.RowsTrain,
			ValMAE:       m.MetricsVal.MAE,
			Warnings:     m.Warnings,
			Timestamp:    time.Now().UTC(),
		})
	}
	return nil
}

func loadRecords(ctx context.Context, f *trainFlags, cfg *config.Config) ([]map[string]any, string, error) {
	if !f.fromDB {
		records, err := dataset.Load(f.data)
		return records, f.data, err
	}
	if cfg.Database.URL == "" {
		return nil, "", errors.New("--from-db requires database.url")
	}
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, "", err
	}
	defer db.Close()

	filter := store.OutcomeFilter{}
	source := "postgres:pricing_outcomes"
	if f.since > 0 {
		since := time.Now().Add(-f.since).UTC()
		filter.Since = &since
		source += " since " + since.Format(time.RFC3339)
	}
	records, err := db.ListOutcomes(ctx, filter)
	if err != nil {
		return nil, "", fmt.Errorf("list outcomes: %w", err)
	}
	return records, source, nil
}

func publishTrained(ctx context.Context, cfg *config.Config, logger *slog.Logger, evt hermes.ModelTrainedEvent) {
	hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
	if err != nil {
		logger.Warn("failed to connect to hermes, model not announced", "error", err)
		return
	}
	defer hc.Close()
	if !hc.Connected() {
		logger.Warn("hermes not connected, model not announced", "url", cfg.Hermes.URL)
		return
	}
	if err := hc.Publish(hermes.SubjectModelTrained, evt); err != nil {
		logger.Warn("failed to publish model trained event", "error", err)
		return
	}
	logger.Info("model trained event published", "model_version", evt.ModelVersion)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
