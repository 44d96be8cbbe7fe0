package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

const (
	chartWidth   = 640.0
	chartHeight  = 280.0
	chartPadLeft = 48.0
	chartPadTop  = 16.0
	chartPadEdge = 16.0
	chartPadBot  = 40.0
	yTickCount   = 5
	maxXTicks    = 6
)

// ChartPoint is one plotted record in SVG coordinates.
type ChartPoint struct {
	X, Y  float64
	Value float64
	Label string
}

// Tick is an axis label at an SVG coordinate.
type Tick struct {
	Pos   float64
	Label string
}

// Chart is a precomputed SVG line chart of predicted kWh over time.
type Chart struct {
	Width, Height float64
	Left, Right   float64
	Top, Bottom   float64
	Points        []ChartPoint
	Polyline      string
	YTicks        []Tick
	XTicks        []Tick
}

// BuildChart plots records in chronological order (timestamp, then ID), with x proportional to
// elapsed time. Records sharing one timestamp are spread evenly. Returns nil for no records.
// The input slice is not modified.
func BuildChart(records []models.PredictionRecord) *Chart {
	if len(records) == 0 {
		return nil
	}
	sorted := append([]models.PredictionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	c := &Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Left:   chartPadLeft,
		Right:  chartWidth - chartPadEdge,
		Top:    chartPadTop,
		Bottom: chartHeight - chartPadBot,
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range sorted {
		lo = math.Min(lo, r.PredictedKWh)
		hi = math.Max(hi, r.PredictedKWh)
	}
	if hi-lo < 1e-9 {
		lo, hi = lo-0.5, hi+0.5
	}

	plotW := c.Right - c.Left
	plotH := c.Bottom - c.Top
	n := len(sorted)
	first := sorted[0].Timestamp
	span := sorted[n-1].Timestamp.Sub(first)
	coords := make([]string, 0, n)
	for i, r := range sorted {
		x := c.Left + plotW/2
		switch {
		case span > 0:
			x = c.Left + plotW*float64(r.Timestamp.Sub(first))/float64(span)
		case n > 1:
			x = c.Left + plotW*float64(i)/float64(n-1)
		}
		y := c.Bottom - plotH*(r.PredictedKWh-lo)/(hi-lo)
		p := ChartPoint{
			X:     round2(x),
			Y:     round2(y),
			Value: r.PredictedKWh,
			Label: r.Timestamp.Format(models.TimestampLayout),
		}
		c.Points = append(c.Points, p)
		coords = append(coords, fmtCoord(p.X)+","+fmtCoord(p.Y))
	}
	c.Polyline = strings.Join(coords, " ")

	for i := 0; i < yTickCount; i++ {
		v := lo + (hi-lo)*float64(i)/float64(yTickCount-1)
		c.YTicks = append(c.YTicks, Tick{
			Pos:   round2(c.Bottom - plotH*float64(i)/float64(yTickCount-1)),
			Label: fmt.Sprintf("%.2f", v),
		})
	}

	step := 1
	if n > maxXTicks {
		step = int(math.Ceil(float64(n-1) / float64(maxXTicks-1)))
	}
	for i := 0; i < n; i += step {
		c.XTicks = append(c.XTicks, Tick{Pos: c.Points[i].X, Label: sorted[i].Timestamp.Format("01-02 15:04")})
	}
	if last := c.Points[n-1].X; c.XTicks[len(c.XTicks)-1].Pos != last {
		c.XTicks = append(c.XTicks, Tick{Pos: last, Label: sorted[n-1].Timestamp.Format("01-02 15:04")})
	}
	return c
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func fmtCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
