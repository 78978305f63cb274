package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Direction labels for score and activity series
const (
	Improving  = "improving"
	Declining  = "declining"
	Increasing = "increasing"
	Decreasing = "decreasing"
	Stable     = "stable"
)

// Slope thresholds separating a stable series from a moving one. Daily
// activity is counted in conversations per day, so it uses a finer threshold.
const (
	ScoreSlopeThreshold    = 0.5
	ActivitySlopeThreshold = 0.1
)

// Fit is the result of an ordinary least-squares line fit
type Fit struct {
	Slope       float64 `json:"slope"`
	Intercept   float64 `json:"intercept"`
	Correlation float64 `json:"correlation"`
}

// LinearTrend fits values against their index 0..n-1
func LinearTrend(values []float64) Fit {
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	return LinearFit(x, values)
}

// LinearFit fits y = intercept + slope*x. Fewer than two points, or a
// constant x, yield a flat line through the mean.
func LinearFit(x, y []float64) Fit {
	if len(x) != len(y) || len(x) == 0 {
		return Fit{}
	}
	if len(x) < 2 || StdDev(x) == 0 {
		return Fit{Intercept: Mean(y)}
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Fit{
		Slope:       beta,
		Intercept:   alpha,
		Correlation: Pearson(x, y),
	}
}

// ClassifyTrend labels a score slope as improving, declining or stable
func ClassifyTrend(slope, threshold float64) string {
	switch {
	case slope > threshold:
		return Improving
	case slope < -threshold:
		return Declining
	default:
		return Stable
	}
}

// ClassifyActivity labels an activity slope as increasing, decreasing or stable
func ClassifyActivity(slope, threshold float64) string {
	switch {
	case slope > threshold:
		return Increasing
	case slope < -threshold:
		return Decreasing
	default:
		return Stable
	}
}

// MovingAverage smooths values with a trailing window. The window shrinks
// to len(values) for short series, so the result has len-window+1 points.
func MovingAverage(values []float64, window int) []float64 {
	if len(values) == 0 || window <= 0 {
		return []float64{}
	}
	if window > len(values) {
		window = len(values)
	}

	out := make([]float64, 0, len(values)-window+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// ErrUnderdetermined is returned when a polynomial fit has no points
var ErrUnderdetermined = errors.New("stats: not enough points for polynomial fit")

// PolyFit returns least-squares polynomial coefficients ordered from the
// constant term upwards, always degree+1 long. When the points cannot
// determine the requested degree the fit falls back to lower degrees and
// the unused higher coefficients are zero.
func PolyFit(x, y []float64, degree int) ([]float64, error) {
	if len(x) != len(y) || len(x) == 0 {
		return nil, ErrUnderdetermined
	}
	if degree < 0 {
		degree = 0
	}

	coef := make([]float64, degree+1)
	for d := min(degree, len(x)-1); d >= 0; d-- {
		solved, err := solveVandermonde(x, y, d)
		if err != nil {
			continue
		}
		copy(coef, solved)
		return coef, nil
	}
	return nil, ErrUnderdetermined
}

func solveVandermonde(x, y []float64, degree int) ([]float64, error) {
	cols := degree + 1
	a := mat.NewDense(len(x), cols, nil)
	for i, xi := range x {
		p := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, p)
			p *= xi
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		return nil, err
	}

	out := make([]float64, cols)
	for j := range out {
		out[j] = c.AtVec(j)
		if math.IsNaN(out[j]) || math.IsInf(out[j], 0) {
			return nil, ErrUnderdetermined
		}
	}
	return out, nil
}

// PolyEval evaluates coefficients ordered from the constant term upwards
func PolyEval(coef []float64, at float64) float64 {
	result := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		result = result*at + coef[i]
	}
	return result
}
