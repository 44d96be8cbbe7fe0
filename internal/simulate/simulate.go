// Package simulate generates a synthetic hourly sensor dataset for one building.
package simulate

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

const (
	TempMean     = 25.0
	TempStd      = 5.0
	HumidityMean = 50.0
	HumidityStd  = 10.0
	// EmptyProbability is the chance a given hour is unoccupied.
	EmptyProbability = 0.3
)

// Params controls a simulation run.
type Params struct {
	Start time.Time
	Days  int
	Seed  uint64
}

// DefaultParams returns 30 days from 2024-01-01 with seed 42.
func DefaultParams() Params {
	return Params{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:  30,
		Seed:  42,
	}
}

// Generate returns 24*Days readings at hourly cadence beginning at Start.
// All temperatures are drawn first, then humidities, then occupancy, from a single
// seeded source, so equal Params always yield equal readings.
func Generate(p Params) []models.SensorReading {
	n := 24 * p.Days
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(p.Seed, 0))

	temperature := make([]float64, n)
	for i := range temperature {
		temperature[i] = TempMean + TempStd*rng.NormFloat64()
	}
	humidity := make([]float64, n)
	for i := range humidity {
		humidity[i] = HumidityMean + HumidityStd*rng.NormFloat64()
	}
	occupancy := make([]int, n)
	for i := range occupancy {
		if rng.Float64() >= EmptyProbability {
			occupancy[i] = 1
		}
	}

	readings := make([]models.SensorReading, n)
	for i := 0; i < n; i++ {
		ts := p.Start.Add(time.Duration(i) * time.Hour)
		readings[i] = models.SensorReading{
			Timestamp:         ts,
			Temperature:       temperature[i],
			Humidity:          humidity[i],
			Occupancy:         occupancy[i],
			EnergyConsumption: EnergyConsumption(ts.Hour(), occupancy[i], temperature[i]),
		}
	}
	return readings
}

// EnergyConsumption is the deterministic kWh target for an hour:
// a base load rising through the day, scaled up 50% when occupied and 2% per degree above 25°C.
func EnergyConsumption(hour, occupancy int, temperature float64) float64 {
	base := 0.5 + 0.05*float64(hour)
	occupancyFactor := 1 + 0.5*float64(occupancy)
	tempFactor := 1 + 0.02*(temperature-TempMean)
	return round2(base * occupancyFactor * tempFactor)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
