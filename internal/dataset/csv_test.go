package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

func TestReadCSV(t *testing.T) {
	input := `timestamp,temperature,humidity,occupancy,energy_consumption
2024-01-01 00:00:00,27.48,44.12,1,0.77
2024-01-01 01:00:00,24.3,61.7,0,0.54`

	readings, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), readings[0].Timestamp)
	assert.InDelta(t, 27.48, readings[0].Temperature, 1e-9)
	assert.InDelta(t, 44.12, readings[0].Humidity, 1e-9)
	assert.Equal(t, 1, readings[0].Occupancy)
	assert.InDelta(t, 0.77, readings[0].EnergyConsumption, 1e-9)
	assert.Equal(t, 0, readings[1].Occupancy)
}

func TestReadCSV_ColumnsByName(t *testing.T) {
	input := `energy_consumption,occupancy,extra,timestamp,humidity,temperature
0.5,1,x,2024-01-02 05:00:00,40,20`

	readings, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.InDelta(t, 20.0, readings[0].Temperature, 1e-9)
	assert.InDelta(t, 40.0, readings[0].Humidity, 1e-9)
	assert.Equal(t, 5, readings[0].Timestamp.Hour())
}

func TestReadCSV_MissingColumn(t *testing.T) {
	input := `timestamp,temperature,occupancy,energy_consumption
2024-01-01 00:00:00,27.48,1,0.77`

	_, err := ReadCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "humidity")
}

func TestReadCSV_MalformedValues(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad temperature", "2024-01-01 00:00:00,hot,44,1,0.7"},
		{"bad timestamp", "yesterday,20,44,1,0.7"},
		{"occupancy out of range", "2024-01-01 00:00:00,20,44,2,0.7"},
		{"short row", "2024-01-01 00:00:00,20"},
		{"NaN temperature", "2024-01-01 00:00:00,NaN,44,1,0.7"},
		{"infinite humidity", "2024-01-01 00:00:00,20,-Inf,1,0.7"},
		{"infinite target", "2024-01-01 00:00:00,20,44,1,+Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "timestamp,temperature,humidity,occupancy,energy_consumption\n" + tt.row
			_, err := ReadCSV(strings.NewReader(input))
			require.Error(t, err)
			if tt.name != "short row" {
				assert.ErrorIs(t, err, ErrMalformedValue)
			}
		})
	}
}

func TestReadCSV_EmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	in := []models.SensorReading{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: 27.483570765056164, Humidity: 44.1, Occupancy: 1, EnergyConsumption: 0.77},
		{Timestamp: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), Temperature: -3.25, Humidity: 61.0, Occupancy: 0, EnergyConsumption: 0.42},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "timestamp,temperature,humidity,occupancy,energy_consumption\n"))
	assert.Contains(t, buf.String(), "2024-01-01 00:00:00,27.483570765056164,44.1,1,0.77")

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteFile_CreatesDirectoriesAndRoundTrips(t *testing.T) {
	in := []models.SensorReading{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: 27.483570765056164, Humidity: 44.1, Occupancy: 1, EnergyConsumption: 0.77},
		{Timestamp: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), Temperature: 24.5, Humidity: 61, Occupancy: 0, EnergyConsumption: 0.42},
	}
	path := filepath.Join(t.TempDir(), "data", "nested", "sensor_data.csv")

	require.NoError(t, WriteFile(path, in))

	var want bytes.Buffer
	require.NoError(t, WriteCSV(&want, in))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.Bytes(), got, "file must match WriteCSV byte for byte")

	out, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteFile_OverwritesIdentically(t *testing.T) {
	in := []models.SensorReading{
		{Timestamp: time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC), Temperature: 19.25, Humidity: 50, Occupancy: 1, EnergyConsumption: 0.9},
	}
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, WriteFile(path, in))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, in))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
