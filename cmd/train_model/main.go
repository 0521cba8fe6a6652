// Command train_model trains a classifier offline on a held-out split and
// reports how well it separates edible from poisonous samples.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mushroomnet/config"
	"mushroomnet/dataset"
	"mushroomnet/db"
	"mushroomnet/logging"
	"mushroomnet/ml"
)

type trainConfig struct {
	Data      string
	ModelType string
	TestRatio float64
	DBPath    string
	Watch     bool
	Debug     bool
	Options   ml.TrainOptions
}

type report struct {
	Model   string
	Stats   ml.TrainStats
	Metrics ml.Metrics
	Dropped int
	Skipped int
	Elapsed time.Duration
}

func main() {
	if err := trainCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func trainCommand() *cobra.Command {
	defaults := config.Default()
	cfg := trainConfig{Options: defaults.Model.TrainOptions()}

	cmd := &cobra.Command{
		Use:   "train_model --data file",
		Short: "Train a model on a split of the dataset and print held-out metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(config.Log{Debug: cfg.Debug})
			defer logging.Sync()
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cfg.Data, "data", "i", defaults.Dataset.Source, "dataset file or URL")
	cmd.Flags().StringVarP(&cfg.ModelType, "model-type", "m", ml.ModelNeuralNetwork, "neural_network or decision_tree")
	cmd.Flags().IntVarP(&cfg.Options.Iterations, "iterations", "n", cfg.Options.Iterations, "maximum training passes")
	cmd.Flags().Float64VarP(&cfg.Options.ErrorThresh, "error-thresh", "e", cfg.Options.ErrorThresh, "stop once the training error is at or below this")
	cmd.Flags().Float64VarP(&cfg.TestRatio, "test-ratio", "t", 0.2, "share of rows held out for evaluation")
	cmd.Flags().Int64VarP(&cfg.Options.Seed, "seed", "x", cfg.Options.Seed, "random seed for the split and the weights")
	cmd.Flags().IntVar(&cfg.Options.MaxTreeDepth, "max-depth", cfg.Options.MaxTreeDepth, "maximum decision tree depth")
	cmd.Flags().BoolVar(&cfg.Options.Log, "log", true, "show training progress")
	cmd.Flags().StringVar(&cfg.DBPath, "db", "", "sqlite database to append the training log to")
	cmd.Flags().BoolVarP(&cfg.Watch, "watch", "w", false, "retrain whenever the data file changes")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "use debug log mode")
	return cmd
}

func run(ctx context.Context, cfg trainConfig, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DBPath != "" {
		if err := db.InitDB(cfg.DBPath); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
	}

	if err := trainOnce(ctx, cfg, out); err != nil {
		return err
	}
	if !cfg.Watch {
		return nil
	}
	return watch(ctx, cfg, out)
}

func trainOnce(ctx context.Context, cfg trainConfig, out io.Writer) error {
	r, err := train(ctx, cfg, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "model=%s iterations=%d training_error=%.4f\n", r.Model, r.Stats.Iterations, r.Stats.Error)
	fmt.Fprintf(out, "test_samples=%d skipped=%d dropped_rows=%d\n", r.Metrics.Samples, r.Skipped, r.Dropped)
	fmt.Fprintf(out, "accuracy=%.2f precision=%.2f recall=%.2f\n", r.Metrics.Accuracy, r.Metrics.Precision, r.Metrics.Recall)

	if db.Enabled() {
		err := db.SaveTrainingLog(db.TrainingLog{
			ModelName:     r.Model,
			Samples:       r.Metrics.Samples,
			DroppedRows:   r.Dropped,
			Iterations:    r.Stats.Iterations,
			TrainingError: r.Stats.Error,
			Accuracy:      r.Metrics.Accuracy,
			Precision:     r.Metrics.Precision,
			Recall:        r.Metrics.Recall,
			Duration:      r.Elapsed,
			TrainedAt:     time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to save training log: %w", err)
		}
	}
	return nil
}

// train builds value tables from the training split only, so held-out rows
// with unseen codes are skipped rather than encoded.
func train(ctx context.Context, cfg trainConfig, progressOut io.Writer) (*report, error) {
	logger := logging.Logger()
	trainer, err := ml.NewTrainer(cfg.ModelType)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	rows, dropped, err := dataset.Load(ctx, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.String("source", cfg.Data), zap.Int("rows", len(rows)), zap.Int("dropped", dropped))

	trainRows, testRows := ml.SplitRows(rows, cfg.TestRatio, cfg.Options.Seed)
	tables, err := ml.BuildValueTables(trainRows, dataset.Columns)
	if err != nil {
		return nil, err
	}
	samples, err := ml.EncodeSamples(trainRows, tables)
	if err != nil {
		return nil, err
	}
	testSamples, skipped, err := ml.EncodeKnown(testRows, tables)
	if err != nil {
		return nil, err
	}

	opts := cfg.Options
	var bar *progressbar.ProgressBar
	if opts.Log && trainer.Name() == ml.ModelNeuralNetwork {
		bar = progressbar.NewOptions(opts.Iterations,
			progressbar.OptionSetWriter(progressOut),
			progressbar.OptionSetDescription("Training "+trainer.Name()),
			progressbar.OptionShowCount(),
		)
		opts.Progress = func(p ml.Progress) {
			_ = bar.Set(p.Iteration)
			logger.Debug("training progress", zap.Int("iteration", p.Iteration), zap.Float64("error", p.Error))
		}
	}

	model, stats, err := trainer.Train(ctx, samples, tables, opts)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(progressOut)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}

	return &report{
		Model:   trainer.Name(),
		Stats:   stats,
		Metrics: ml.Evaluate(model, testSamples),
		Dropped: dropped,
		Skipped: skipped,
		Elapsed: time.Since(started),
	}, nil
}

// watch retrains whenever the data file is written until ctx is done.
func watch(ctx context.Context, cfg trainConfig, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(cfg.Data); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Data, err)
	}
	logger := logging.Logger()
	logger.Info("watching dataset", zap.String("path", cfg.Data))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Info("dataset changed, retraining", zap.String("op", event.Op.String()))
			if err := trainOnce(ctx, cfg, out); err != nil {
				logger.Error("retraining failed", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}
