package dashboard

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

// ErrInvalidForm is returned when a form field is missing, unparsable or out of range.
var ErrInvalidForm = errors.New("invalid form input")

// Form field bounds.
const (
	MinTemperature     = 10.0
	MaxTemperature     = 40.0
	DefaultTemperature = 26.0
	MinHumidity        = 10
	MaxHumidity        = 90
	DefaultHumidity    = 50
)

// FormValues is what the input form shows; it echoes the last submission.
type FormValues struct {
	Temperature float64
	Humidity    int
	Occupancy   int
	Hour        int
	DayOfWeek   int
}

// DefaultForm returns the initial form for the given current hour.
func DefaultForm(hour int) FormValues {
	return FormValues{
		Temperature: DefaultTemperature,
		Humidity:    DefaultHumidity,
		Occupancy:   0,
		Hour:        hour,
		DayOfWeek:   0,
	}
}

// Features converts the form into a model input.
func (f FormValues) Features() models.FeatureVector {
	return models.FeatureVector{
		Temperature: f.Temperature,
		Humidity:    float64(f.Humidity),
		Occupancy:   f.Occupancy,
		Hour:        f.Hour,
		DayOfWeek:   f.DayOfWeek,
	}
}

// ParseForm reads and range-checks the prediction form.
func ParseForm(v url.Values) (FormValues, error) {
	var f FormValues
	var err error

	if f.Temperature, err = formFloat(v, "temperature", MinTemperature, MaxTemperature); err != nil {
		return f, err
	}
	if f.Humidity, err = formInt(v, "humidity", MinHumidity, MaxHumidity); err != nil {
		return f, err
	}
	if f.Occupancy, err = formInt(v, "occupancy", 0, 1); err != nil {
		return f, err
	}
	if f.Hour, err = formInt(v, "hour", 0, 23); err != nil {
		return f, err
	}
	if f.DayOfWeek, err = formInt(v, "dayofweek", 0, 6); err != nil {
		return f, err
	}
	return f, nil
}

func formFloat(v url.Values, field string, min, max float64) (float64, error) {
	raw := strings.TrimSpace(v.Get(field))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidForm, field)
	}
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidForm, field)
	}
	if x < min || x > max {
		return 0, fmt.Errorf("%w: %s must be between %g and %g", ErrInvalidForm, field, min, max)
	}
	return x, nil
}

func formInt(v url.Values, field string, min, max int) (int, error) {
	raw := strings.TrimSpace(v.Get(field))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidForm, field)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidForm, field)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidForm, field, min, max)
	}
	return n, nil
}
