package models

import "time"

// TimestampLayout is the textual timestamp format shared by the dataset CSV and the history log.
const TimestampLayout = "2006-01-02 15:04:05"

// FeatureColumns is the column order the regression model is trained and queried with.
var FeatureColumns = []string{"temperature", "humidity", "occupancy", "hour", "dayofweek"}

type SensorReading struct {
	Timestamp         time.Time `json:"timestamp"`
	Temperature       float64   `json:"temperature"`
	Humidity          float64   `json:"humidity"`
	Occupancy         int       `json:"occupancy"`
	EnergyConsumption float64   `json:"energy_consumption"`
}

type FeatureVector struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Occupancy   int     `json:"occupancy"`
	Hour        int     `json:"hour"`
	DayOfWeek   int     `json:"dayofweek"`
}

type PredictionRecord struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	Occupancy    int       `json:"occupancy"`
	Hour         int       `json:"hour"`
	DayOfWeek    int       `json:"dayofweek"`
	PredictedKWh float64   `json:"predicted_kwh"`
}

type PredictionResponse struct {
	PredictedEnergyKWh float64 `json:"predicted_energy_kwh"`
}

// CalendarFeatures returns hour of day (0-23) and day of week with Monday=0 .. Sunday=6.
// Training and serving both derive calendar features through this function.
func CalendarFeatures(t time.Time) (hour, dayOfWeek int) {
	return t.Hour(), (int(t.Weekday()) + 6) % 7
}

// NewFeatureVector builds the model input for raw sensor values observed at t.
func NewFeatureVector(t time.Time, temperature, humidity float64, occupancy int) FeatureVector {
	hour, dow := CalendarFeatures(t)
	return FeatureVector{
		Temperature: temperature,
		Humidity:    humidity,
		Occupancy:   occupancy,
		Hour:        hour,
		DayOfWeek:   dow,
	}
}

// Features derives the model input from a reading.
func (r SensorReading) Features() FeatureVector {
	return NewFeatureVector(r.Timestamp, r.Temperature, r.Humidity, r.Occupancy)
}

// Row returns the vector in FeatureColumns order.
func (f FeatureVector) Row() []float64 {
	return []float64{
		f.Temperature,
		f.Humidity,
		float64(f.Occupancy),
		float64(f.Hour),
		float64(f.DayOfWeek),
	}
}

// NewPredictionRecord pairs an input vector with its prediction at time t.
func NewPredictionRecord(t time.Time, f FeatureVector, predicted float64) PredictionRecord {
	return PredictionRecord{
		Timestamp:    t,
		Temperature:  f.Temperature,
		Humidity:     f.Humidity,
		Occupancy:    f.Occupancy,
		Hour:         f.Hour,
		DayOfWeek:    f.DayOfWeek,
		PredictedKWh: predicted,
	}
}

// Features returns the input vector a record was predicted from.
func (r PredictionRecord) Features() FeatureVector {
	return FeatureVector{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Occupancy:   r.Occupancy,
		Hour:        r.Hour,
		DayOfWeek:   r.DayOfWeek,
	}
}
