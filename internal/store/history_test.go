package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := NewSQLiteStore(context.Background(), path, time.UTC)
	require.NoError(t, err)
	return s
}

func record(ts time.Time, kwh float64) models.PredictionRecord {
	f := models.NewFeatureVector(ts, 26, 50, 1)
	return models.NewPredictionRecord(ts, f, kwh)
}

func TestNewSQLiteStore_CreatesFileAndSchema(t *testing.T) {
	s := newTestStore(t)

	_, err := os.Stat(s.Path())
	require.NoError(t, err, "database file should exist after init")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Init(context.Background()), "Init must be idempotent")
}

func TestAppend_AssignsIDAndRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)

	saved, err := s.Append(ctx, record(ts, 1.234))
	require.NoError(t, err)
	assert.Positive(t, saved.ID)

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, saved.ID, got[0].ID)
	assert.True(t, ts.Equal(got[0].Timestamp), "timestamp %v != %v", got[0].Timestamp, ts)
	assert.Equal(t, 26.0, got[0].Temperature)
	assert.Equal(t, 50.0, got[0].Humidity)
	assert.Equal(t, 1, got[0].Occupancy)
	assert.Equal(t, 14, got[0].Hour)
	assert.Equal(t, 1, got[0].DayOfWeek, "2024-03-05 is a Tuesday")
	assert.Equal(t, 1.234, got[0].PredictedKWh)
}

func TestAppend_RejectsZeroTimestamp(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(context.Background(), models.PredictionRecord{PredictedKWh: 1})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestList_MostRecentFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// insert out of chronological order
	for _, offset := range []int{3, 0, 11, 7, 1, 5, 9, 2, 10, 4, 8, 6} {
		_, err := s.Append(ctx, record(base.Add(time.Duration(offset)*time.Minute), float64(offset)))
		require.NoError(t, err)
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 12)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.After(all[i-1].Timestamp), "row %d out of order", i)
	}

	top, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 10)
	assert.Equal(t, 11.0, top[0].PredictedKWh)
	assert.Equal(t, 2.0, top[9].PredictedKWh)
}

func TestList_TiesBrokenByDescendingID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	first, err := s.Append(ctx, record(ts, 1))
	require.NoError(t, err)
	second, err := s.Append(ctx, record(ts, 2))
	require.NoError(t, err)

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestAppend_StoresInConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3:30", 3*3600+1800)
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLiteStore(context.Background(), path, loc)
	require.NoError(t, err)

	utc := time.Date(2024, 1, 1, 20, 45, 0, 0, time.UTC)
	_, err = s.Append(context.Background(), record(utc, 1))
	require.NoError(t, err)

	got, err := s.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, utc.Equal(got[0].Timestamp))
	assert.Equal(t, "2024-01-02 00:15:00", got[0].Timestamp.Format(models.TimestampLayout))
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(ctx, path, nil)
	require.NoError(t, err)
	_, err = s1.Append(ctx, record(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), 0.5))
	require.NoError(t, err)

	s2, err := NewSQLiteStore(ctx, path, nil)
	require.NoError(t, err)
	n, err := s2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
