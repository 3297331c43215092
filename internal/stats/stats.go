// Package stats turns latency samples into the descriptive, robust and
// API-level statistics that candidate scoring is built on.
//
// Every function is pure: inputs are copied before sorting and never
// modified. Statistics that cannot be computed from the given samples are
// reported as undefined (nil pointers, or a false ok value) instead of
// failing.
package stats

import (
	"math"
	"sort"
)

const (
	// robustScale converts a MAD into a standard deviation estimate for
	// normally distributed data.
	robustScale = 1.4826
	// outlierFence is the IQR multiplier of the Tukey fences.
	outlierFence = 1.5
	// LatencyCeilingMS is the mean latency at which the QoS latency score reaches zero.
	LatencyCeilingMS = 5000.0
)

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// Median returns the 50th percentile of values.
func Median(values []float64) (float64, bool) {
	return Percentile(values, 50)
}

// Percentile returns the q-th percentile (0..100) of values using linear
// interpolation between the closest ranks of the sorted samples.
func Percentile(values []float64, q float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return percentileSorted(sortedCopy(values), q), true
}

func percentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[n-1]
	}
	pos := float64(n-1) * q / 100
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// StdDev returns the sample standard deviation (Bessel's correction).
// At least two values are required.
func StdDev(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}
	m, _ := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1)), true
}

// MAD returns the median absolute deviation from the median.
func MAD(values []float64) (float64, bool) {
	med, ok := Median(values)
	if !ok {
		return 0, false
	}
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	return Median(deviations)
}

// TrimmedMean drops floor(n*ratio) samples from each end of the sorted values
// and averages the rest. If that would remove half of the samples or more,
// the median is returned instead. A ratio of zero yields exactly Mean(values).
func TrimmedMean(values []float64, ratio float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	if ratio < 0 {
		ratio = 0
	}
	k := int(math.Floor(float64(n) * ratio))
	if k == 0 {
		return Mean(values)
	}
	if removed := 2 * k; removed*2 >= n {
		return Median(values)
	}
	sorted := sortedCopy(values)
	return Mean(sorted[k : n-k])
}

// OutlierRatio returns the fraction of values outside the Tukey fences
// [p25 - 1.5*IQR, p75 + 1.5*IQR].
func OutlierRatio(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := sortedCopy(values)
	p25 := percentileSorted(sorted, 25)
	p75 := percentileSorted(sorted, 75)
	iqr := p75 - p25
	lower := p25 - outlierFence*iqr
	upper := p75 + outlierFence*iqr

	outliers := 0
	for _, v := range sorted {
		if v < lower || v > upper {
			outliers++
		}
	}
	return float64(outliers) / float64(len(sorted)), true
}

// SpikeRate returns the fraction of values strictly above thresholdMS.
func SpikeRate(values []float64, thresholdMS float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	spikes := 0
	for _, v := range values {
		if v > thresholdMS {
			spikes++
		}
	}
	return float64(spikes) / float64(len(values)), true
}

// LatencyScore maps a latency onto [0,1] linearly, reaching 0 at ceilingMS.
// An undefined latency scores 0.
func LatencyScore(latencyMS *float64, ceilingMS float64) float64 {
	if latencyMS == nil || ceilingMS <= 0 {
		return 0
	}
	return math.Max(0, 1-*latencyMS/ceilingMS)
}

// Clamp01 bounds v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortedCopy(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted
}

func ptr(v float64) *float64 {
	return &v
}
