package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/lifecycle"
	"github.com/kjstillabower/energy-forecast-service/internal/models"
	"github.com/kjstillabower/energy-forecast-service/internal/observability"
	"github.com/kjstillabower/energy-forecast-service/internal/predictor"
	"github.com/kjstillabower/energy-forecast-service/internal/validation"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to Smart Energy Forecast API!"

// maxPredictBody caps POST /predict bodies; a feature vector is well under 1 KiB.
const maxPredictBody = 64 << 10

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	predictor        predictor.Predictor
	logger           *zap.Logger
	version          string
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. The predictor is shared read-only across requests.
func NewHandler(pred predictor.Predictor, logger *zap.Logger, version string) *Handler {
	if version == "" {
		version = "dev"
	}
	return &Handler{
		predictor: pred,
		logger:    logger,
		version:   version,
	}
}

// GetRoot handles GET /.
func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

// PostPredict handles POST /predict.
func (h *Handler) PostPredict(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r, h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, maxPredictBody)
	features, err := validation.DecodePrediction(r.Body)
	if err != nil {
		observability.RecordPrediction("invalid", 0)
		logger.Debug("rejected prediction request", zap.Error(err))
		if errors.Is(err, validation.ErrMalformedJSON) {
			writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON object")
			return
		}
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_REQUEST", err.Error())
		return
	}

	if err := r.Context().Err(); err != nil {
		observability.RecordPrediction("error", 0)
		writeError(w, r, http.StatusServiceUnavailable, "REQUEST_TIMEOUT", "Request deadline exceeded")
		return
	}

	kwh, err := h.predictor.Predict(features)
	if err != nil {
		observability.RecordPrediction("error", 0)
		logger.Error("prediction failed", zap.Error(err), zap.Any("features", features))
		writeError(w, r, http.StatusInternalServerError, "PREDICTION_FAILED", "Unable to compute prediction")
		return
	}
	observability.RecordPrediction("success", kwh)
	logger.Debug("prediction served",
		zap.Float64("temperature", features.Temperature),
		zap.Float64("humidity", features.Humidity),
		zap.Int("occupancy", features.Occupancy),
		zap.Int("hour", features.Hour),
		zap.Int("dayofweek", features.DayOfWeek),
		zap.Float64("predicted_kwh", kwh))
	writeJSON(w, http.StatusOK, models.PredictionResponse{PredictedEnergyKWh: kwh})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"model": "loaded"}
	resp := map[string]interface{}{
		"status":        result.status,
		"service":       "energy-forecast-service",
		"version":       h.version,
		"checks":        checks,
		"uptimeSeconds": int64(lifecycle.Uptime(time.Now()).Seconds()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	if h.predictor != nil {
		resp["model"] = h.predictor.Info()
	} else {
		checks["model"] = "missing"
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates, in order: shutting-down > model missing > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.predictor == nil {
		return healthResult{"unhealthy", http.StatusServiceUnavailable, "model_missing"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": CorrelationID(r.Context()),
		},
	})
}

func loggerFrom(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger := LoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	return fallback
}
