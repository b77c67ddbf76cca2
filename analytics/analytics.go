// Package analytics provides the numeric helpers behind the business tools.
package analytics

import (
	"errors"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a statistic needs more observations.
var ErrInsufficientData = errors.New("insufficient data")

// ROI returns (revenue-cost)/cost as a percentage. A zero cost yields 0.
func ROI(revenue, cost float64) float64 {
	if cost == 0 {
		return 0
	}
	return (revenue - cost) / cost * 100
}

// Round2 rounds to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Percent formats a value as a percentage string, e.g. "177.78%".
func Percent(x float64) string {
	return strconv.FormatFloat(Round2(x), 'f', -1, 64) + "%"
}

// OnTimePercentage returns onTime/total as a percentage rounded to two
// decimals, or 0 when total is not positive.
func OnTimePercentage(onTime, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(onTime / total * 100)
}

// InventoryItem is one stock line.
type InventoryItem struct {
	Quantity float64
	UnitCost float64
	Status   string
}

// InventorySummary aggregates stock lines.
type InventorySummary struct {
	TotalUnits      float64 `json:"total_units"`
	TotalValue      float64 `json:"total_value"`
	LowStockCount   int     `json:"low_stock_count"`
	OutOfStockCount int     `json:"out_of_stock_count"`
}

// SummarizeInventory totals units and value and counts the low and
// out-of-stock lines.
func SummarizeInventory(items []InventoryItem) InventorySummary {
	var s InventorySummary
	for _, it := range items {
		s.TotalUnits += it.Quantity
		s.TotalValue += it.Quantity * it.UnitCost
		switch it.Status {
		case "low":
			s.LowStockCount++
		case "out_of_stock":
			s.OutOfStockCount++
		}
	}
	return s
}

// Trend is a least-squares line fitted over evenly spaced observations.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"observations"`
}

// FitTrend fits y = intercept + slope*x with x = 0, 1, ..., len(ys)-1.
func FitTrend(ys []float64) (Trend, error) {
	if len(ys) < 2 {
		return Trend{}, ErrInsufficientData
	}
	xs := make([]float64, len(ys))
	floats.Span(xs, 0, float64(len(ys)-1))

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, intercept, slope)
	if math.IsNaN(r2) {
		r2 = 0
	}
	return Trend{Slope: slope, Intercept: intercept, RSquared: r2, N: len(ys)}, nil
}

// Project returns the fitted value steps observations past the last one.
func (t Trend) Project(steps int) float64 {
	return t.Intercept + t.Slope*float64(t.N-1+steps)
}

// Spread is the mean and sample standard deviation of a series.
type Spread struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// MeanStdDev describes a series. A single observation has zero deviation.
func MeanStdDev(xs []float64) (Spread, error) {
	if len(xs) == 0 {
		return Spread{}, ErrInsufficientData
	}
	s := Spread{Min: floats.Min(xs), Max: floats.Max(xs)}
	if len(xs) == 1 {
		s.Mean = xs[0]
		return s, nil
	}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	return s, nil
}
