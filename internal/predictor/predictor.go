package predictor

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kjstillabower/energy-forecast-service/internal/gbm"
	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

var (
	// ErrFeatureOrder is returned when a model was trained on a different column layout than serving uses.
	ErrFeatureOrder = errors.New("model feature order does not match serving features")
	// ErrNonFinite is returned when the model produces NaN or Inf.
	ErrNonFinite = errors.New("model produced a non-finite prediction")
)

// Predictor maps a feature vector to predicted kWh.
type Predictor interface {
	Predict(f models.FeatureVector) (float64, error)
	Info() ModelInfo
}

// ModelInfo describes the loaded artifact for health output.
type ModelInfo struct {
	Path      string    `json:"path"`
	Trees     int       `json:"trees"`
	Features  []string  `json:"features"`
	TrainedAt time.Time `json:"trainedAt"`
}

// EnergyPredictor wraps a model loaded once at startup. It never mutates the model.
type EnergyPredictor struct {
	model *gbm.Model
	info  ModelInfo
}

// Load reads the artifact at path and checks its feature layout.
func Load(path string) (*EnergyPredictor, error) {
	m, err := gbm.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	p, err := New(m)
	if err != nil {
		return nil, err
	}
	p.info.Path = path
	return p, nil
}

// New wraps an in-memory model.
func New(m *gbm.Model) (*EnergyPredictor, error) {
	if !slices.Equal(m.FeatureNames, models.FeatureColumns) {
		return nil, fmt.Errorf("%w: model has %v, serving uses %v", ErrFeatureOrder, m.FeatureNames, models.FeatureColumns)
	}
	return &EnergyPredictor{
		model: m,
		info: ModelInfo{
			Trees:     len(m.Trees),
			Features:  append([]string(nil), m.FeatureNames...),
			TrainedAt: m.TrainedAt,
		},
	}, nil
}

// Predict returns the model output for f rounded to 3 decimal places.
func (p *EnergyPredictor) Predict(f models.FeatureVector) (float64, error) {
	v, err := p.model.Predict(f.Row())
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNonFinite
	}
	return Round3(v), nil
}

func (p *EnergyPredictor) Info() ModelInfo {
	return p.info
}

// Round3 rounds half away from zero to 3 decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
