package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
	"github.com/kjstillabower/energy-forecast-service/internal/observability"
)

// PredictionClient requests a single prediction from the forecast service.
type PredictionClient interface {
	Predict(ctx context.Context, f models.FeatureVector) (float64, error)
}

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrInvalidResponse = errors.New("invalid response")
	ErrRateLimited     = errors.New("rate limited")
	ErrBadRequest      = errors.New("bad request")
)

// maxErrorBody bounds how much of a non-2xx body is read for the error message.
const maxErrorBody = 4 << 10

// HTTPPredictionClient calls POST /predict on the forecast service.
type HTTPPredictionClient struct {
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewPredictionClient returns a client that makes exactly one attempt per call.
// A zero timeout waits for the service indefinitely.
func NewPredictionClient(apiURL string, timeout time.Duration) (*HTTPPredictionClient, error) {
	return NewPredictionClientWithRetry(apiURL, timeout, 1, 100*time.Millisecond, 2*time.Second)
}

func NewPredictionClientWithRetry(apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*HTTPPredictionClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", apiURL)
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	if timeout < 0 {
		timeout = 0
	}

	return &HTTPPredictionClient{
		apiURL:         apiURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type predictRequest struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Occupancy   int     `json:"occupancy"`
	Hour        int     `json:"hour"`
	DayOfWeek   int     `json:"dayofweek"`
}

type predictResponse struct {
	PredictedEnergyKWh *float64 `json:"predicted_energy_kwh"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Predict sends f to the service and returns predicted kWh.
func (c *HTTPPredictionClient) Predict(ctx context.Context, f models.FeatureVector) (float64, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.PredictionAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.callAPI(ctx, f)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			break
		}
	}

	observability.PredictionAPIErrorsTotal.WithLabelValues(string(CategorizeError(lastErr))).Inc()
	if c.retryAttempts > 1 {
		return 0, fmt.Errorf("exhausted retries: %w", lastErr)
	}
	return 0, lastErr
}

func (c *HTTPPredictionClient) callAPI(ctx context.Context, f models.FeatureVector) (float64, error) {
	start := time.Now()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.buildRequest(reqCtx, f)
	if err != nil {
		observability.PredictionAPICallsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.PredictionAPICallsTotal.WithLabelValues("error").Inc()
		observability.PredictionAPIDuration.WithLabelValues("error").Observe(duration)

		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
			(errors.As(err, &netErr) && netErr.Timeout()) {
			return 0, fmt.Errorf("request timeout: %w", err)
		}
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.PredictionAPICallsTotal.WithLabelValues(status).Inc()
	observability.PredictionAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return 0, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response body: %w", err)
	}

	var apiResp predictResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return 0, fmt.Errorf("%w: parse response: %v", ErrInvalidResponse, err)
	}
	if apiResp.PredictedEnergyKWh == nil {
		return 0, fmt.Errorf("%w: predicted_energy_kwh missing", ErrInvalidResponse)
	}
	v := *apiResp.PredictedEnergyKWh
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: predicted_energy_kwh not finite", ErrInvalidResponse)
	}
	return v, nil
}

func (c *HTTPPredictionClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrInvalidResponse) {
		return false
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "http request failed") {
		return true
	}

	return false
}

func (c *HTTPPredictionClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *HTTPPredictionClient) buildRequest(ctx context.Context, f models.FeatureVector) (*http.Request, error) {
	payload, err := json.Marshal(predictRequest{
		Temperature: f.Temperature,
		Humidity:    f.Humidity,
		Occupancy:   f.Occupancy,
		Hour:        f.Hour,
		DayOfWeek:   f.DayOfWeek,
	})
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *HTTPPredictionClient) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readErrorDetail(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d%s", ErrRateLimited, resp.StatusCode, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d%s", ErrUpstreamFailure, resp.StatusCode, detail)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d%s", ErrBadRequest, resp.StatusCode, detail)
	}
	return fmt.Errorf("%w: unexpected HTTP %d", ErrInvalidResponse, resp.StatusCode)
}

// readErrorDetail extracts the service's error envelope message, falling back to raw text.
func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var env errorResponse
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		if env.Error.Code != "" {
			return fmt.Sprintf(" (%s: %s)", env.Error.Code, env.Error.Message)
		}
		return " (" + env.Error.Message + ")"
	}
	return " (" + strings.TrimSpace(string(raw)) + ")"
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
