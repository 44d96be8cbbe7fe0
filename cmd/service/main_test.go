package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	httphandler "github.com/kjstillabower/energy-forecast-service/internal/http"
	"github.com/kjstillabower/energy-forecast-service/internal/models"
	"github.com/kjstillabower/energy-forecast-service/internal/predictor"
)

type fixedPredictor struct{ kwh float64 }

func (p fixedPredictor) Predict(models.FeatureVector) (float64, error) { return p.kwh, nil }

func (p fixedPredictor) Info() predictor.ModelInfo {
	return predictor.ModelInfo{Path: "model/test.json", Trees: 3, Features: models.FeatureColumns}
}

const predictBody = `{"temperature": 26, "humidity": 50, "occupancy": 1, "hour": 9, "dayofweek": 0}`

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestNewRouter_Routes verifies every public route is mounted with the right method.
func TestNewRouter_Routes(t *testing.T) {
	handler := httphandler.NewHandler(fixedPredictor{kwh: 1.234}, zap.NewNop(), "test")
	router := newRouter(handler, nil, 5*time.Second, zap.NewNop())

	tests := []struct {
		method, path, body string
		wantStatus         int
		wantBody           string
	}{
		{"GET", "/", "", http.StatusOK, "Welcome to Smart Energy Forecast API!"},
		{"GET", "/health", "", http.StatusOK, `"status":"healthy"`},
		{"POST", "/predict", predictBody, http.StatusOK, `"predicted_energy_kwh":1.234`},
		{"GET", "/metrics", "", http.StatusOK, "go_goroutines"},
		{"GET", "/predict", "", http.StatusMethodNotAllowed, ""},
		{"GET", "/missing", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(router, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want substring %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

// TestNewRouter_CorrelationID verifies the correlation middleware wraps every route.
func TestNewRouter_CorrelationID(t *testing.T) {
	handler := httphandler.NewHandler(fixedPredictor{kwh: 1}, zap.NewNop(), "test")
	router := newRouter(handler, nil, 0, zap.NewNop())

	req := httptest.NewRequest("POST", "/predict", strings.NewReader(predictBody))
	req.Header.Set(httphandler.CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(httphandler.CorrelationHeader); got != "abc-123" {
		t.Errorf("%s = %q, want abc-123", httphandler.CorrelationHeader, got)
	}
}

// TestNewRouter_RateLimitOnlyOnPredict verifies the limiter guards /predict but not the other routes.
func TestNewRouter_RateLimitOnlyOnPredict(t *testing.T) {
	handler := httphandler.NewHandler(fixedPredictor{kwh: 1}, zap.NewNop(), "test")
	router := newRouter(handler, httphandler.NewRateLimiter(1, 1), 5*time.Second, zap.NewNop())

	if w := serve(router, "POST", "/predict", predictBody); w.Code != http.StatusOK {
		t.Fatalf("first predict status = %d, want 200", w.Code)
	}
	if w := serve(router, "POST", "/predict", predictBody); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second predict status = %d, want 429", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := serve(router, "GET", "/", ""); w.Code != http.StatusOK {
			t.Fatalf("GET / status = %d, want 200", w.Code)
		}
	}
}
