package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FlavioCFOliveira/lstmsales/internal/config"
	"github.com/FlavioCFOliveira/lstmsales/internal/metrics"
	"github.com/FlavioCFOliveira/lstmsales/internal/pipeline"
)

func newTrainCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run grid search, refit the best model and write a submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, *cfgFile)
			if err != nil {
				return err
			}
			return runTrain(cmd.Context(), cfg)
		},
	}
	addTrainFlags(cmd.Flags())
	cobra.CheckErr(bindFlags(v, cmd.Flags()))
	return cmd
}

func addTrainFlags(fs *pflag.FlagSet) {
	d := config.Default()

	fs.String("train", d.TrainPath, "training features CSV")
	fs.String("test", d.TestPath, "test features CSV")
	fs.String("template", d.TemplatePath, "submission template CSV")
	fs.String("target-column", d.TargetColumn, "target column in the training CSV")
	fs.StringSlice("ignore-columns", d.IgnoreColumns, "columns that are neither target nor feature")
	fs.String("output-dir", d.OutputDir, "directory for the submission file")
	fs.String("prediction-column", d.PredictionColumn, "template column that receives predictions")
	fs.String("model-out", d.ModelOut, "write the refit model to this file")
	fs.String("cv-report", d.CVReport, "write per-configuration CV scores to this CSV")
	fs.String("history", d.HistoryPath, "write the refit loss history to this CSV")
	fs.String("metrics-file", d.MetricsFile, "write Prometheus metrics to this textfile")

	fs.Int("year-lookback", d.YearLookback, "yearly lookback steps")
	fs.Int("month-lookback", d.MonthLookback, "monthly lookback steps")
	fs.IntSlice("seq-sizes", d.SeqSizes, "candidate seq_size values")
	fs.IntSlice("final-dense-sizes", d.FinalDenseSizes, "candidate final_dense_size values")
	fs.Int("epochs", d.Epochs, "training epochs per fit")
	fs.Int("batch-size", d.BatchSize, "mini-batch size")
	fs.Int("patience", d.Patience, "refit early stopping patience in epochs (0 disables)")
	fs.Int64("seed", d.Seed, "weight initialisation and shuffling seed")
	fs.Int("folds", d.Folds, "cross-validation folds")
	fs.Int("jobs", d.Jobs, "concurrent fits (<= 0 uses every CPU)")

	fs.String("log-level", d.LogLevel, "log level")
	fs.String("log-format", d.LogFormat, "log format (text or json)")
}

// bindFlags binds every flag to the config key with dashes replaced by
// underscores.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := flagKey(f.Name)
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func runTrain(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := setupLogger(cfg.LogLevel, cfg.LogFormat).WithField("run_id", uuid.New().String())
	log.WithFields(logrus.Fields{
		"train":          cfg.TrainPath,
		"test":           cfg.TestPath,
		"year_lookback":  cfg.YearLookback,
		"month_lookback": cfg.MonthLookback,
		"epochs":         cfg.Epochs,
		"batch_size":     cfg.BatchSize,
		"folds":          cfg.Folds,
	}).Info("training started")

	start := time.Now()
	res, err := pipeline.New(cfg, log, metrics.NewRecorder()).Run(ctx)
	if err != nil {
		log.WithError(err).Error("training failed")
		return reportedError{err}
	}
	log.WithFields(logrus.Fields{
		"submission": res.SubmissionPath,
		"elapsed":    time.Since(start).Round(time.Second),
	}).Info("training finished")
	return nil
}
