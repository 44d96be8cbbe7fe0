// Package trainer fits the energy model on a sensor dataset and scores it on a held-out split.
package trainer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/kjstillabower/energy-forecast-service/internal/gbm"
	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

var ErrNotEnoughData = errors.New("need at least two readings to split train and test")

// Config holds the split and model settings. There is no tuning loop.
type Config struct {
	TestSize float64
	Seed     uint64
	Params   gbm.Params
}

// DefaultConfig returns an 80/20 split with seed 42 and the default boosting parameters.
func DefaultConfig() Config {
	return Config{
		TestSize: 0.2,
		Seed:     42,
		Params:   gbm.DefaultParams(),
	}
}

// Result is a fitted model with its held-out error.
type Result struct {
	Model     *gbm.Model
	TrainRows int
	TestRows  int
	MAE       float64
	RMSE      float64
}

// Train derives calendar features, splits, fits and evaluates.
func Train(readings []models.SensorReading, cfg Config) (*Result, error) {
	if len(readings) < 2 {
		return nil, ErrNotEnoughData
	}
	X, y := FeatureTable(readings)
	trainIdx, testIdx := Split(len(readings), cfg.TestSize, cfg.Seed)

	trainX, trainY := gather(X, y, trainIdx)
	testX, testY := gather(X, y, testIdx)

	model, err := gbm.Fit(trainX, trainY, models.FeatureColumns, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	pred := make([]float64, len(testX))
	for i, row := range testX {
		if pred[i], err = model.Predict(row); err != nil {
			return nil, fmt.Errorf("evaluate model: %w", err)
		}
	}

	return &Result{
		Model:     model,
		TrainRows: len(trainX),
		TestRows:  len(testX),
		MAE:       MeanAbsoluteError(testY, pred),
		RMSE:      RootMeanSquaredError(testY, pred),
	}, nil
}

// FeatureTable builds the model matrix in models.FeatureColumns order and the energy target.
func FeatureTable(readings []models.SensorReading) ([][]float64, []float64) {
	X := make([][]float64, len(readings))
	y := make([]float64, len(readings))
	for i, r := range readings {
		X[i] = r.Features().Row()
		y[i] = r.EnergyConsumption
	}
	return X, y
}

// Split shuffles row indices with a seeded source and holds out ceil(testSize*n) rows,
// clamped so both sides keep at least one row.
func Split(n int, testSize float64, seed uint64) (train, test []int) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, 0))
	rng.Shuffle(n, func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

func gather(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	outX := make([][]float64, len(idx))
	outY := make([]float64, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}

func MeanAbsoluteError(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var s float64
	for i := range actual {
		s += math.Abs(actual[i] - predicted[i])
	}
	return s / float64(len(actual))
}

func RootMeanSquaredError(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var s float64
	for i := range actual {
		d := actual[i] - predicted[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(actual)))
}
