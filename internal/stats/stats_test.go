package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileEndpoints(t *testing.T) {
	lists := [][]float64{
		{42},
		{3, 1, 2},
		{50, 60, 55, 58, 62},
		{0.5, 1200, 3, 3, 87.25, 9000},
	}
	for _, l := range lists {
		lo, ok := Percentile(l, 0)
		require.True(t, ok)
		hi, ok := Percentile(l, 100)
		require.True(t, ok)

		sorted := sortedCopy(l)
		assert.Equal(t, sorted[0], lo)
		assert.Equal(t, sorted[len(sorted)-1], hi)

		below, _ := Percentile(l, -5)
		above, _ := Percentile(l, 150)
		assert.Equal(t, lo, below)
		assert.Equal(t, hi, above)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	values := []float64{50, 55, 58, 60, 62, 500}

	p25, _ := Percentile(values, 25)
	p75, _ := Percentile(values, 75)
	p50, _ := Percentile(values, 50)

	assert.InDelta(t, 55.75, p25, 1e-9)
	assert.InDelta(t, 61.5, p75, 1e-9)
	assert.InDelta(t, 59, p50, 1e-9)

	_, ok := Percentile(nil, 50)
	assert.False(t, ok)
}

func TestTrimmedMeanZeroRatioIsMean(t *testing.T) {
	lists := [][]float64{
		{1},
		{0.1, 0.2, 0.3},
		{50, 60, 55, 500, 58, 62},
		{1e-9, 3.3333, 7.77777, 12345.678, 0.000001},
	}
	for _, l := range lists {
		mean, _ := Mean(l)
		trimmed, ok := TrimmedMean(l, 0)
		require.True(t, ok)
		assert.Equal(t, mean, trimmed)
	}
}

func TestTrimmedMean(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}

	trimmed, ok := TrimmedMean(values, 0.1)
	require.True(t, ok)
	assert.InDelta(t, 5.5, trimmed, 1e-9)

	t.Run("falls back to median when trimming half", func(t *testing.T) {
		v := []float64{1, 2, 3, 100}
		got, _ := TrimmedMean(v, 0.25)
		assert.InDelta(t, 2.5, got, 1e-9)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		v := []float64{9, 1, 5, 3, 7, 2, 8, 4, 6, 10}
		before := append([]float64(nil), v...)
		TrimmedMean(v, 0.2)
		assert.Equal(t, before, v)
	})

	_, ok = TrimmedMean(nil, 0.1)
	assert.False(t, ok)
}

func TestMADAndStdDev(t *testing.T) {
	values := []float64{50, 60, 55, 58, 62}

	mad, ok := MAD(values)
	require.True(t, ok)
	assert.InDelta(t, 3, mad, 1e-9)

	sd, ok := StdDev(values)
	require.True(t, ok)
	assert.InDelta(t, 4.690416, sd, 1e-6)

	_, ok = StdDev([]float64{1})
	assert.False(t, ok)
}

func TestComputeSteadyLatencies(t *testing.T) {
	b := Compute([]float64{50, 60, 55, 58, 62}, 1, DefaultThresholds())

	require.NotNil(t, b.Basic.Mean)
	assert.InDelta(t, 57, *b.Basic.Mean, 1e-9)
	assert.Equal(t, 50.0, *b.Basic.Min)
	assert.Equal(t, 62.0, *b.Basic.Max)
	assert.Equal(t, 58.0, *b.Basic.Median)

	require.NotNil(t, b.Variability.CoefficientOfVariation)
	assert.InDelta(t, 5.0, *b.Variability.IQR, 1e-9)
	assert.InDelta(t, 3*1.4826, *b.Variability.RobustStdDev, 1e-9)

	require.NotNil(t, b.Robustness.OutlierRatio)
	assert.Equal(t, 0.0, *b.Robustness.OutlierRatio)
	assert.Greater(t, *b.Robustness.ConsistencyScore, 0.9)

	assert.Equal(t, 0.0, b.API.SpikeRate)
	assert.Equal(t, 1.0, b.API.AvailabilityStability)
	assert.Greater(t, b.API.QoSScore, 0.9)
	assert.Greater(t, b.API.SustainedPerformanceScore, 0.9)
	assert.Equal(t, 5, b.Metadata.SuccessfulSamples)
}

func TestComputeSingleSpike(t *testing.T) {
	th := DefaultThresholds()
	th.SpikeThresholdMS = 100
	b := Compute([]float64{50, 60, 55, 500, 58, 62}, 1, th)

	require.NotNil(t, b.Robustness.OutlierRatio)
	assert.Greater(t, *b.Robustness.OutlierRatio, 0.0)
	assert.InDelta(t, 1.0/6.0, *b.Robustness.OutlierRatio, 1e-9)
	assert.InDelta(t, 1.0/6.0, b.API.SpikeRate, 1e-9)
}

func TestComputeNoSuccessfulSamples(t *testing.T) {
	b := Compute(nil, 0.4, DefaultThresholds())

	assert.True(t, b.IsEmpty())
	assert.Equal(t, Basic{}, b.Basic)
	assert.Equal(t, Variability{}, b.Variability)
	assert.Equal(t, Robustness{}, b.Robustness)
	assert.Equal(t, 0.0, b.SuccessRate)
	assert.Equal(t, 0.0, b.API.QoSScore)
	assert.Equal(t, 0.0, b.API.SustainedPerformanceScore)
	assert.Equal(t, 1.0, b.API.TimeoutRiskScore)
}

func TestComputeSingleSample(t *testing.T) {
	b := Compute([]float64{120}, 0.2, DefaultThresholds())

	require.NotNil(t, b.Basic.Mean)
	assert.Equal(t, 120.0, *b.Basic.P99)
	assert.Equal(t, Variability{}, b.Variability)

	require.NotNil(t, b.Robustness.ConsistencyScore)
	assert.Equal(t, 1.0, *b.Robustness.ConsistencyScore)
	assert.Equal(t, 1.0, *b.Robustness.StabilityIndex)
	assert.Equal(t, 0.0, *b.Robustness.OutlierRatio)
	assert.Equal(t, 120.0, *b.Robustness.TrimmedMean)
}

func TestComputeTimeoutRiskSaturates(t *testing.T) {
	th := DefaultThresholds()
	th.TimeoutThresholdMS = 1000
	b := Compute([]float64{900, 1500, 2500}, 1, th)

	assert.Equal(t, 1.0, b.API.TimeoutRiskScore)
	assert.GreaterOrEqual(t, b.API.QoSScore, 0.0)
	assert.LessOrEqual(t, b.API.QoSScore, 1.0)
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	latencies := []float64{300, 100, 200}
	Compute(latencies, 1, DefaultThresholds())
	assert.Equal(t, []float64{300, 100, 200}, latencies)
}
