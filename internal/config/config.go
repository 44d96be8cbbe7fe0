package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service and dashboard configuration loaded from YAML and env.
type Config struct {
	ServerPort string
	ModelPath  string

	RequestTimeout time.Duration
	RateLimitRPS   int // 0 disables the /predict limiter
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	DashboardPort    string
	PredictionAPIURL string
	APITimeout       time.Duration // 0 means the dashboard waits indefinitely
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	BreakerFailures  int // 0 disables the circuit breaker
	BreakerSuccesses int
	BreakerCooldown  time.Duration
	HistoryDBPath    string
	Timezone         string
	DefaultLang      string
	HistoryRows      int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Dashboard struct {
		Port             string `yaml:"port"`
		APIURL           string `yaml:"api_url"`
		APITimeout       string `yaml:"api_timeout"`
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		BreakerFailures  int    `yaml:"breaker_failure_threshold"`
		BreakerSuccesses int    `yaml:"breaker_success_threshold"`
		BreakerCooldown  string `yaml:"breaker_cooldown"`
		DBPath           string `yaml:"db_path"`
		Timezone         string `yaml:"timezone"`
		DefaultLang      string `yaml:"default_lang"`
		HistoryRows      int    `yaml:"history_rows"`
	} `yaml:"dashboard"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev).
// Env vars override file values for ports, paths, URL and timezone. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.Server.Port, "8000")
	cfg.ModelPath = firstNonEmpty(os.Getenv("MODEL_PATH"), fc.Model.Path, "model/energy_model_gbm.json")

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS < 0 {
		cfg.RateLimitRPS = 0
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DashboardPort = firstNonEmpty(os.Getenv("DASHBOARD_PORT"), fc.Dashboard.Port, "8501")
	cfg.PredictionAPIURL = firstNonEmpty(os.Getenv("PREDICTION_API_URL"), fc.Dashboard.APIURL, "http://127.0.0.1:8000/predict")
	cfg.APITimeout = parseDurationOrZero(fc.Dashboard.APITimeout, 0)
	if cfg.APITimeout < 0 {
		cfg.APITimeout = 0
	}
	cfg.RetryAttempts = fc.Dashboard.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryBaseDelay = parseDuration(fc.Dashboard.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Dashboard.RetryMaxDelay, 2*time.Second)
	cfg.BreakerFailures = fc.Dashboard.BreakerFailures
	if cfg.BreakerFailures < 0 {
		cfg.BreakerFailures = 0
	}
	cfg.BreakerSuccesses = fc.Dashboard.BreakerSuccesses
	if cfg.BreakerSuccesses <= 0 {
		cfg.BreakerSuccesses = 1
	}
	cfg.BreakerCooldown = parseDuration(fc.Dashboard.BreakerCooldown, 30*time.Second)
	cfg.HistoryDBPath = firstNonEmpty(os.Getenv("HISTORY_DB_PATH"), fc.Dashboard.DBPath, "dashboard/history.db")
	cfg.Timezone = firstNonEmpty(os.Getenv("DASHBOARD_TIMEZONE"), fc.Dashboard.Timezone, "Asia/Tehran")
	cfg.DefaultLang = strings.ToLower(firstNonEmpty(fc.Dashboard.DefaultLang, "en"))
	cfg.HistoryRows = fc.Dashboard.HistoryRows
	if cfg.HistoryRows == 0 {
		cfg.HistoryRows = 10
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.HistoryRows < 0 {
		return fmt.Errorf("dashboard.history_rows must be positive, got %d", cfg.HistoryRows)
	}
	switch cfg.DefaultLang {
	case "en", "ar":
		// valid
	default:
		return fmt.Errorf("dashboard.default_lang must be en or ar, got %q", cfg.DefaultLang)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("dashboard.timezone %q: %w", cfg.Timezone, err)
	}
	u, err := url.Parse(cfg.PredictionAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("dashboard.api_url must be an absolute URL, got %q", cfg.PredictionAPIURL)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	return nil
}
