package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearTrend(t *testing.T) {
	fit := LinearTrend([]float64{60, 70, 85})
	assert.InDelta(t, 12.5, fit.Slope, 1e-9)
	assert.InDelta(t, 59.1667, fit.Intercept, 1e-3)
	assert.Greater(t, fit.Correlation, 0.9)

	perfect := LinearTrend([]float64{1, 2, 3, 4})
	assert.InDelta(t, 1.0, perfect.Slope, 1e-9)
	assert.InDelta(t, 1.0, perfect.Intercept, 1e-9)
	assert.InDelta(t, 1.0, perfect.Correlation, 1e-9)
}

func TestLinearTrend_Degenerate(t *testing.T) {
	assert.Equal(t, Fit{}, LinearTrend(nil))

	single := LinearTrend([]float64{70})
	assert.Equal(t, 0.0, single.Slope)
	assert.Equal(t, 70.0, single.Intercept)

	flat := LinearFit([]float64{3, 3, 3}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, flat.Slope)
	assert.Equal(t, 2.0, flat.Intercept)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		slope     float64
		threshold float64
		trend     string
		activity  string
	}{
		{0.6, ScoreSlopeThreshold, Improving, Increasing},
		{-0.6, ScoreSlopeThreshold, Declining, Decreasing},
		{0.5, ScoreSlopeThreshold, Stable, Stable},
		{0.2, ActivitySlopeThreshold, Improving, Increasing},
		{-0.05, ActivitySlopeThreshold, Stable, Stable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.trend, ClassifyTrend(tt.slope, tt.threshold))
		assert.Equal(t, tt.activity, ClassifyActivity(tt.slope, tt.threshold))
	}
}

func TestMovingAverage(t *testing.T) {
	assert.Equal(t, []float64{2, 3, 4}, MovingAverage([]float64{1, 2, 3, 4, 5}, 3))
	assert.Equal(t, []float64{2}, MovingAverage([]float64{1, 2, 3}, 7))
	assert.Empty(t, MovingAverage(nil, 3))

	values := []float64{5, 9, 1, 4, 8, 2}
	assert.Len(t, MovingAverage(values, 4), len(values)-4+1)
}

func TestPolyFit_Quadratic(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 1 + 2*xi + 3*xi*xi
	}

	coef, err := PolyFit(x, y, 2)
	require.NoError(t, err)
	require.Len(t, coef, 3)
	assert.InDelta(t, 1.0, coef[0], 1e-6)
	assert.InDelta(t, 2.0, coef[1], 1e-6)
	assert.InDelta(t, 3.0, coef[2], 1e-6)

	assert.InDelta(t, 86.0, PolyEval(coef, 5), 1e-6)
}

func TestPolyFit_FallsBackToLowerDegree(t *testing.T) {
	coef, err := PolyFit([]float64{0, 1}, []float64{10, 20}, 2)
	require.NoError(t, err)
	require.Len(t, coef, 3)
	assert.InDelta(t, 10.0, coef[0], 1e-9)
	assert.InDelta(t, 10.0, coef[1], 1e-9)
	assert.Equal(t, 0.0, coef[2])
}

func TestPolyFit_NoPoints(t *testing.T) {
	_, err := PolyFit(nil, nil, 2)
	assert.ErrorIs(t, err, ErrUnderdetermined)
}

func TestPolyEval(t *testing.T) {
	assert.Equal(t, 17.0, PolyEval([]float64{1, 2, 3}, 2))
	assert.Equal(t, 0.0, PolyEval(nil, 4))
}
