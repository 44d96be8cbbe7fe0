package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/dataset"
	"github.com/kjstillabower/energy-forecast-service/internal/observability"
	"github.com/kjstillabower/energy-forecast-service/internal/trainer"
)

func main() {
	defaults := trainer.DefaultConfig()
	dataPath := flag.String("data", "data/sensor_data.csv", "input CSV produced by the simulator")
	modelPath := flag.String("model", "model/energy_model_gbm.json", "output model path")
	seed := flag.Uint64("seed", defaults.Seed, "seed for the train/test split")
	testSize := flag.Float64("test-size", defaults.TestSize, "held-out fraction")
	flag.Parse()

	logger, err := observability.NewLogger("train")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *testSize <= 0 || *testSize >= 1 {
		logger.Fatal("invalid -test-size", zap.Float64("test_size", *testSize))
	}

	readings, err := dataset.ReadFile(*dataPath)
	if err != nil {
		logger.Fatal("read dataset", zap.Error(err), zap.String("path", *dataPath))
	}

	cfg := defaults
	cfg.Seed = *seed
	cfg.TestSize = *testSize
	result, err := trainer.Train(readings, cfg)
	if err != nil {
		logger.Fatal("train", zap.Error(err))
	}
	if err := result.Model.SaveFile(*modelPath); err != nil {
		logger.Fatal("save model", zap.Error(err), zap.String("path", *modelPath))
	}

	logger.Info("model trained",
		zap.String("model", *modelPath),
		zap.Int("train_rows", result.TrainRows),
		zap.Int("test_rows", result.TestRows),
		zap.Float64("mae", result.MAE),
		zap.Float64("rmse", result.RMSE))
	fmt.Printf("MAE: %.3f kWh\nRMSE: %.3f kWh\nModel saved to %s\n", result.MAE, result.RMSE, *modelPath)
}
