// Package dataset reads and writes the hourly sensor dataset CSV.
//
// Expected format:
//
//	timestamp,temperature,humidity,occupancy,energy_consumption
//	2024-01-01 00:00:00,27.48,44.12,1,0.52
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

// Columns is the dataset header in write order.
var Columns = []string{"timestamp", "temperature", "humidity", "occupancy", "energy_consumption"}

var (
	ErrMissingColumn  = errors.New("missing column")
	ErrMalformedValue = errors.New("malformed value")
)

// WriteCSV writes readings with a header row. Output depends only on the readings,
// so identical inputs produce identical bytes.
func WriteCSV(w io.Writer, readings []models.SensorReading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range readings {
		record := []string{
			r.Timestamp.Format(models.TimestampLayout),
			formatFloat(r.Temperature),
			formatFloat(r.Humidity),
			strconv.Itoa(r.Occupancy),
			formatFloat(r.EnergyConsumption),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes readings to path, creating parent directories as needed.
func WriteFile(path string, readings []models.SensorReading) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := WriteCSV(w, readings); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile opens path and parses it with ReadCSV.
func ReadFile(path string) ([]models.SensorReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a dataset. Non-finite numbers are rejected. Columns are matched by header name, so extra columns
// and reordering are tolerated; a missing column or unparsable cell is an error.
func ReadCSV(r io.Reader) ([]models.SensorReading, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var readings []models.SensorReading
	lineNum := 1
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		reading, err := parseRecord(record, idx, lineNum)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}
	return idx, nil
}

func parseRecord(record []string, idx map[string]int, lineNum int) (models.SensorReading, error) {
	field := func(col string) (string, error) {
		i := idx[col]
		if i >= len(record) {
			return "", fmt.Errorf("line %d: %w: %s is absent", lineNum, ErrMalformedValue, col)
		}
		return strings.TrimSpace(record[i]), nil
	}
	float := func(col string) (float64, error) {
		s, err := field(col)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("line %d: %w: %s=%q", lineNum, ErrMalformedValue, col, s)
		}
		return v, nil
	}

	var r models.SensorReading
	ts, err := field("timestamp")
	if err != nil {
		return r, err
	}
	if r.Timestamp, err = parseTimestamp(ts); err != nil {
		return r, fmt.Errorf("line %d: %w: timestamp=%q", lineNum, ErrMalformedValue, ts)
	}
	if r.Temperature, err = float("temperature"); err != nil {
		return r, err
	}
	if r.Humidity, err = float("humidity"); err != nil {
		return r, err
	}
	occ, err := float("occupancy")
	if err != nil {
		return r, err
	}
	if occ != 0 && occ != 1 {
		return r, fmt.Errorf("line %d: %w: occupancy=%v", lineNum, ErrMalformedValue, occ)
	}
	r.Occupancy = int(occ)
	if r.EnergyConsumption, err = float("energy_consumption"); err != nil {
		return r, err
	}
	return r, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(models.TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
