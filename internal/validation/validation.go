package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

// ErrMalformedJSON is returned when the body is not a JSON object.
var ErrMalformedJSON = errors.New("malformed JSON body")

// ErrFieldMissing is returned when a required field is absent or null.
var ErrFieldMissing = errors.New("field required")

// ErrFieldType is returned when a field has the wrong JSON type or a fractional integer.
var ErrFieldType = errors.New("field has wrong type")

// ErrFieldOutOfRange is returned when a field is outside its documented domain.
var ErrFieldOutOfRange = errors.New("field out of range")

// FieldError names the offending field. It unwraps to one of the sentinel errors above.
type FieldError struct {
	Field string
	Err   error
	Msg   string
}

func (e *FieldError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Field, e.Err, e.Msg)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// PredictionRequest is the wire form of POST /predict. Pointers distinguish absent from zero.
// Integer fields decode as float64 so 1.0 is accepted and 1.5 is rejected as a type error.
type PredictionRequest struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Occupancy   *float64 `json:"occupancy"`
	Hour        *float64 `json:"hour"`
	DayOfWeek   *float64 `json:"dayofweek"`
}

// DecodePrediction reads a PredictionRequest from body and validates it.
// Unknown fields are ignored.
func DecodePrediction(body io.Reader) (models.FeatureVector, error) {
	var req PredictionRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return models.FeatureVector{}, &FieldError{Field: typeErr.Field, Err: ErrFieldType, Msg: "expected " + typeErr.Type.String()}
		}
		return models.FeatureVector{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return ValidatePrediction(req)
}

// ValidatePrediction checks presence, integrality and ranges, then builds the feature vector.
// occupancy must be 0 or 1, hour 0-23, dayofweek 0-6 (Monday=0).
func ValidatePrediction(req PredictionRequest) (models.FeatureVector, error) {
	var f models.FeatureVector
	var err error

	if f.Temperature, err = finite("temperature", req.Temperature); err != nil {
		return models.FeatureVector{}, err
	}
	if f.Humidity, err = finite("humidity", req.Humidity); err != nil {
		return models.FeatureVector{}, err
	}
	if f.Occupancy, err = integer("occupancy", req.Occupancy, 0, 1); err != nil {
		return models.FeatureVector{}, err
	}
	if f.Hour, err = integer("hour", req.Hour, 0, 23); err != nil {
		return models.FeatureVector{}, err
	}
	if f.DayOfWeek, err = integer("dayofweek", req.DayOfWeek, 0, 6); err != nil {
		return models.FeatureVector{}, err
	}
	return f, nil
}

func finite(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, &FieldError{Field: field, Err: ErrFieldMissing}
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, &FieldError{Field: field, Err: ErrFieldOutOfRange, Msg: "must be finite"}
	}
	return *v, nil
}

func integer(field string, v *float64, min, max int) (int, error) {
	if v == nil {
		return 0, &FieldError{Field: field, Err: ErrFieldMissing}
	}
	if *v != math.Trunc(*v) {
		return 0, &FieldError{Field: field, Err: ErrFieldType, Msg: "expected integer"}
	}
	n := int(*v)
	if n < min || n > max {
		return 0, &FieldError{Field: field, Err: ErrFieldOutOfRange, Msg: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return n, nil
}
