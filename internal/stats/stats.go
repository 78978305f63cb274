// Package stats provides the statistical primitives used by the analytics
// package: descriptive summaries, least-squares fits, smoothing and
// dispersion measures. All functions are pure.
package stats

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when a summary is requested for an empty series
var ErrEmpty = errors.New("stats: empty series")

// Summary holds descriptive statistics for a series of scores
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Range  float64 `json:"range"`
}

// Describe computes mean, median, sample standard deviation, min, max and range.
func Describe(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrEmpty
	}

	minV, maxV := floats.Min(values), floats.Max(values)
	return Summary{
		Mean:   stat.Mean(values, nil),
		Median: Median(values),
		StdDev: StdDev(values),
		Min:    minV,
		Max:    maxV,
		Range:  maxV - minV,
	}, nil
}

// Mean returns the arithmetic mean, 0 for an empty series
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value, averaging the two middle values for even lengths
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev returns the sample standard deviation. Series shorter than two
// values have no spread and yield 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// CoefficientOfVariation returns stddev/mean, or 0 when the mean is not positive
func CoefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean <= 0 {
		return 0
	}
	return StdDev(values) / mean
}

// Pearson returns the correlation coefficient of x and y. Zero variance on
// either side, or mismatched lengths, yields 0.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if StdDev(x) == 0 || StdDev(y) == 0 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// GrowthRate returns the percent change from first to last. A zero first
// value has no defined ratio: any gain counts as 100% and anything else as 0.
func GrowthRate(first, last float64) float64 {
	if first == 0 {
		if last > 0 {
			return 100
		}
		return 0
	}
	return (last - first) / first * 100
}

// PercentChange is GrowthRate clamped to [-100, 100]
func PercentChange(previous, recent float64) float64 {
	return Clamp(GrowthRate(previous, recent), -100, 100)
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClampScore bounds v to the score range [0, 100]
func ClampScore(v float64) float64 {
	return Clamp(v, 0, 100)
}

// Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// RunningMean maintains an incremental mean using avg = (avg*(n-1) + x)/n
type RunningMean struct {
	n   int
	avg float64
}

// Add folds a new sample into the mean and returns the updated value
func (r *RunningMean) Add(x float64) float64 {
	r.n++
	r.avg = (r.avg*float64(r.n-1) + x) / float64(r.n)
	return r.avg
}

// Value returns the current mean
func (r *RunningMean) Value() float64 { return r.avg }

// Count returns the number of samples folded in
func (r *RunningMean) Count() int { return r.n }
