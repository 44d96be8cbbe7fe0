// Package store persists dashboard prediction history in a single SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

// ErrInvalidRecord is returned when a record cannot be stored as-is.
var ErrInvalidRecord = errors.New("invalid prediction record")

// HistoryStore is the append-only prediction log read by the dashboard.
type HistoryStore interface {
	Append(ctx context.Context, rec models.PredictionRecord) (models.PredictionRecord, error)
	List(ctx context.Context, limit int) ([]models.PredictionRecord, error)
	Count(ctx context.Context) (int, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT,
	temperature REAL,
	humidity REAL,
	occupancy INTEGER,
	hour INTEGER,
	dayofweek INTEGER,
	predicted_kwh REAL
);
CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
`

const (
	insertSQL = `
		INSERT INTO predictions (timestamp, temperature, humidity, occupancy, hour, dayofweek, predicted_kwh)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	selectSQL = `
		SELECT id, timestamp, temperature, humidity, occupancy, hour, dayofweek, predicted_kwh
		FROM predictions
		ORDER BY timestamp DESC, id DESC
	`
)

// SQLiteStore opens the database file for each operation and closes it before returning,
// so no connection outlives a single Append or List.
type SQLiteStore struct {
	path string
	loc  *time.Location
	mu   sync.Mutex
}

// NewSQLiteStore creates the parent directory and the predictions table if missing.
// Timestamps are written and read in loc; nil means UTC.
func NewSQLiteStore(ctx context.Context, path string, loc *time.Location) (*SQLiteStore, error) {
	if loc == nil {
		loc = time.UTC
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	s := &SQLiteStore{path: path, loc: loc}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Init creates the schema. Safe to call repeatedly.
func (s *SQLiteStore) Init(ctx context.Context) error {
	return s.withDB(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("initialize history schema: %w", err)
		}
		return nil
	})
}

// Append writes rec and returns it with the assigned ID.
func (s *SQLiteStore) Append(ctx context.Context, rec models.PredictionRecord) (models.PredictionRecord, error) {
	if rec.Timestamp.IsZero() {
		return rec, fmt.Errorf("%w: timestamp required", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withDB(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, insertSQL,
			rec.Timestamp.In(s.loc).Format(models.TimestampLayout),
			rec.Temperature,
			rec.Humidity,
			rec.Occupancy,
			rec.Hour,
			rec.DayOfWeek,
			rec.PredictedKWh,
		)
		if err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read inserted id: %w", err)
		}
		rec.ID = id
		return nil
	})
	if err != nil {
		return rec, err
	}
	rec.Timestamp = rec.Timestamp.In(s.loc).Truncate(time.Second)
	return rec, nil
}

// List returns up to limit records, most recent first. limit <= 0 returns all.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	query := selectSQL
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var out []models.PredictionRecord
	err := s.withDB(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query predictions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rec models.PredictionRecord
			var ts string
			if err := rows.Scan(&rec.ID, &ts, &rec.Temperature, &rec.Humidity, &rec.Occupancy,
				&rec.Hour, &rec.DayOfWeek, &rec.PredictedKWh); err != nil {
				return fmt.Errorf("scan prediction: %w", err)
			}
			rec.Timestamp, err = time.ParseInLocation(models.TimestampLayout, ts, s.loc)
			if err != nil {
				return fmt.Errorf("prediction %d: parse timestamp %q: %w", rec.ID, ts, err)
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.withDB(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) withDB(fn func(db *sql.DB) error) error {
	db, err := sql.Open("sqlite3", s.path+"?_busy_timeout=5000&_journal=WAL&_sync=NORMAL")
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	return fn(db)
}
