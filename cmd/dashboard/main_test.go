package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/client"
	"github.com/kjstillabower/energy-forecast-service/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		PredictionAPIURL: "http://127.0.0.1:8000/predict",
		RetryAttempts:    1,
		RetryBaseDelay:   100 * time.Millisecond,
		RetryMaxDelay:    2 * time.Second,
		BreakerSuccesses: 1,
		BreakerCooldown:  30 * time.Second,
	}
}

func TestNewPredictionClient_BreakerDisabledByDefault(t *testing.T) {
	pc, err := newPredictionClient(baseConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("newPredictionClient() error = %v", err)
	}
	if _, ok := pc.(*client.HTTPPredictionClient); !ok {
		t.Errorf("client type = %T, want *client.HTTPPredictionClient", pc)
	}
}

func TestNewPredictionClient_WrapsWithBreaker(t *testing.T) {
	cfg := baseConfig()
	cfg.BreakerFailures = 3

	pc, err := newPredictionClient(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newPredictionClient() error = %v", err)
	}
	if _, ok := pc.(*client.BreakerClient); !ok {
		t.Errorf("client type = %T, want *client.BreakerClient", pc)
	}
}

func TestNewPredictionClient_InvalidURL(t *testing.T) {
	cfg := baseConfig()
	cfg.PredictionAPIURL = "predict"

	if _, err := newPredictionClient(cfg, zap.NewNop()); err == nil {
		t.Fatal("newPredictionClient() expected error for relative URL")
	}
}

func TestServerWriteTimeout(t *testing.T) {
	cfg := baseConfig()
	if got := serverWriteTimeout(cfg); got != 0 {
		t.Errorf("no API timeout: write timeout = %v, want 0", got)
	}

	cfg.APITimeout = 3 * time.Second
	cfg.RetryAttempts = 2
	if got, want := serverWriteTimeout(cfg), 6*time.Second+2*time.Second+10*time.Second; got != want {
		t.Errorf("write timeout = %v, want %v", got, want)
	}
}
