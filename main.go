package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mushroomnet/config"
	"mushroomnet/dataset"
	"mushroomnet/db"
	mhttp "mushroomnet/http"
	"mushroomnet/logging"
	"mushroomnet/ml"
	"mushroomnet/monitoring"
	"mushroomnet/session"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mushroomnet",
		Short: "Mushroom edibility classifier trained at startup and served over HTTP",
	}
	root.PersistentFlags().StringP("config", "c", "config.yaml", "configuration file path")
	root.PersistentFlags().Bool("debug", false, "use debug log mode")
	root.AddCommand(serveCommand())
	return root
}

func serveCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset, train the model and serve the selector page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Log.Debug = true
			}
			if port > 0 {
				cfg.Http.Port = port
			}
			return serve(cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override http.port")
	return cmd
}

func serve(cfg *config.Config) error {
	logging.Setup(cfg.Log)
	defer logging.Sync()
	logger := logging.Logger()

	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			logger.Error("failed to initialize database", zap.String("path", cfg.Database.Path), zap.Error(err))
			return err
		}
		defer db.Close()
		logger.Info("database initialized", zap.String("path", cfg.Database.Path))
	}

	trainer, err := ml.NewTrainer(cfg.Model.Type)
	if err != nil {
		return err
	}
	s, err := session.New(dataset.DefaultSelection(), session.Options{
		Train:     cfg.Model.TrainOptions(),
		CacheSize: cfg.Cache.Size,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	monitor := monitoring.NewRealtimeMonitor(logger, 30*time.Second)
	if err := monitor.Start(); err != nil {
		return err
	}
	defer monitor.Stop()
	s.Subscribe(monitor.Publish)
	s.Subscribe(trainingRecorder(s))

	mhttp.SetSession(s)
	mhttp.SetMonitor(monitor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := cfg.Dataset.Source
	loader := func(ctx context.Context) ([]dataset.Row, int, error) {
		return dataset.Load(ctx, source)
	}
	if err := s.Start(ctx, loader, trainer); err != nil {
		return err
	}
	logger.Info("loading dataset", zap.String("source", source), zap.String("model", trainer.Name()))

	server := mhttp.NewServer(mhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	})
	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errs:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			return err
		}
	}
	logger.Info("shutting down")

	cancel()
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	return nil
}

// trainingRecorder stores a training_log row once the session is trained.
func trainingRecorder(s *session.Session) session.Listener {
	return func(e session.Event) {
		if e.Type != session.EventStatus || e.State != session.Trained || !db.Enabled() {
			return
		}
		training := s.Training()
		if training == nil {
			return
		}
		err := db.SaveTrainingLog(db.TrainingLog{
			ModelName:     training.Model,
			Samples:       training.Samples,
			DroppedRows:   training.DroppedRows,
			Iterations:    training.Iterations,
			TrainingError: training.Error,
			Duration:      training.Duration,
			TrainedAt:     training.TrainedAt,
		})
		if err != nil {
			logging.Logger().Warn("failed to save training log", zap.Error(err))
		}
	}
}
