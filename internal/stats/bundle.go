package stats

// Thresholds parameterises the statistics that depend on configuration.
type Thresholds struct {
	SpikeThresholdMS   float64 `json:"spike_threshold_ms"`
	TimeoutThresholdMS float64 `json:"timeout_threshold_ms"`
	TrimRatio          float64 `json:"trim_ratio"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SpikeThresholdMS:   1000,
		TimeoutThresholdMS: 10000,
		TrimRatio:          0.1,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.SpikeThresholdMS <= 0 {
		t.SpikeThresholdMS = d.SpikeThresholdMS
	}
	if t.TimeoutThresholdMS <= 0 {
		t.TimeoutThresholdMS = d.TimeoutThresholdMS
	}
	if t.TrimRatio < 0 || t.TrimRatio >= 0.5 {
		t.TrimRatio = d.TrimRatio
	}
	return t
}

// Basic holds location statistics. All fields are nil when no sample succeeded.
type Basic struct {
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	P25    *float64 `json:"p25,omitempty"`
	P75    *float64 `json:"p75,omitempty"`
	P95    *float64 `json:"p95,omitempty"`
	P99    *float64 `json:"p99,omitempty"`
}

// Variability holds dispersion statistics. All fields are nil with fewer
// than two successful samples.
type Variability struct {
	StdDev                 *float64 `json:"std_dev,omitempty"`
	CoefficientOfVariation *float64 `json:"coefficient_of_variation,omitempty"`
	IQR                    *float64 `json:"iqr,omitempty"`
	RobustStdDev           *float64 `json:"robust_std_dev,omitempty"`
	MAD                    *float64 `json:"mad,omitempty"`
}

// Robustness holds outlier-resistant statistics. Fields are set whenever at
// least one sample succeeded.
type Robustness struct {
	ConsistencyScore *float64 `json:"consistency_score,omitempty"`
	StabilityIndex   *float64 `json:"stability_index,omitempty"`
	OutlierRatio     *float64 `json:"outlier_ratio,omitempty"`
	TrimmedMean      *float64 `json:"trimmed_mean,omitempty"`
}

// APIPerformance holds the request-level quality indicators. They are always
// defined; missing samples count as worst case.
type APIPerformance struct {
	SpikeRate                 float64 `json:"spike_rate"`
	TimeoutRiskScore          float64 `json:"timeout_risk_score"`
	AvailabilityStability     float64 `json:"availability_stability"`
	QoSScore                  float64 `json:"qos_score"`
	SustainedPerformanceScore float64 `json:"sustained_performance_score"`
}

// Metadata records what the bundle was computed from.
type Metadata struct {
	SuccessfulSamples int        `json:"successful_samples"`
	Thresholds        Thresholds `json:"thresholds"`
}

// Bundle is the full statistical description of one candidate's samples.
type Bundle struct {
	Basic       Basic          `json:"basic"`
	Variability Variability    `json:"variability"`
	Robustness  Robustness     `json:"robustness"`
	API         APIPerformance `json:"api_performance"`
	SuccessRate float64        `json:"success_rate"`
	Metadata    Metadata       `json:"metadata"`
}

// Compute builds a Bundle from the latencies of the successful samples and the
// overall success rate. latencies is not modified.
func Compute(latencies []float64, successRate float64, th Thresholds) Bundle {
	th = th.withDefaults()
	n := len(latencies)

	b := Bundle{
		SuccessRate: Clamp01(successRate),
		Metadata: Metadata{
			SuccessfulSamples: n,
			Thresholds:        th,
		},
	}
	if n == 0 {
		b.SuccessRate = 0
		b.API = APIPerformance{
			SpikeRate:        1,
			TimeoutRiskScore: 1,
		}
		return b
	}

	sorted := sortedCopy(latencies)
	mean, _ := Mean(latencies)
	median := percentileSorted(sorted, 50)
	p25 := percentileSorted(sorted, 25)
	p75 := percentileSorted(sorted, 75)
	p95 := percentileSorted(sorted, 95)

	b.Basic = Basic{
		Mean:   ptr(mean),
		Median: ptr(median),
		Min:    ptr(percentileSorted(sorted, 0)),
		Max:    ptr(percentileSorted(sorted, 100)),
		P25:    ptr(p25),
		P75:    ptr(p75),
		P95:    ptr(p95),
		P99:    ptr(percentileSorted(sorted, 99)),
	}

	if n >= 2 {
		sd, _ := StdDev(latencies)
		mad, _ := MAD(latencies)
		iqr := p75 - p25
		b.Variability = Variability{
			StdDev:       ptr(sd),
			IQR:          ptr(iqr),
			MAD:          ptr(mad),
			RobustStdDev: ptr(mad * robustScale),
		}
		if mean > 0 {
			b.Variability.CoefficientOfVariation = ptr(sd / mean)
		}
	}

	b.Robustness = robustness(latencies, median, b.Variability, th)
	b.API = apiPerformance(latencies, b, th)
	return b
}

func robustness(latencies []float64, median float64, v Variability, th Thresholds) Robustness {
	consistency := 1.0
	stability := 1.0
	if median > 0 {
		if v.RobustStdDev != nil {
			consistency = 1 / (1 + *v.RobustStdDev/median)
		}
		if v.IQR != nil {
			stability = 1 / (1 + *v.IQR/median)
		}
	}
	outliers := 0.0
	if len(latencies) >= 2 {
		outliers, _ = OutlierRatio(latencies)
	}
	trimmed, _ := TrimmedMean(latencies, th.TrimRatio)
	return Robustness{
		ConsistencyScore: ptr(consistency),
		StabilityIndex:   ptr(stability),
		OutlierRatio:     ptr(outliers),
		TrimmedMean:      ptr(trimmed),
	}
}

func apiPerformance(latencies []float64, b Bundle, th Thresholds) APIPerformance {
	spikeRate, _ := SpikeRate(latencies, th.SpikeThresholdMS)
	timeoutRisk := 1.0
	if b.Basic.P95 != nil {
		timeoutRisk = Clamp01(*b.Basic.P95 / th.TimeoutThresholdMS)
	}
	stability := StabilityScore(b.Variability.CoefficientOfVariation)
	latencyScore := LatencyScore(b.Basic.Mean, LatencyCeilingMS)

	qos := 0.4*latencyScore + 0.35*stability + 0.25*b.SuccessRate
	sustained := 0.3*(1-spikeRate) + 0.3*(1-timeoutRisk) + 0.4*stability

	return APIPerformance{
		SpikeRate:                 spikeRate,
		TimeoutRiskScore:          timeoutRisk,
		AvailabilityStability:     b.SuccessRate,
		QoSScore:                  Clamp01(qos),
		SustainedPerformanceScore: Clamp01(sustained),
	}
}

// StabilityScore maps a coefficient of variation onto (0,1]. An undefined cv
// means the variance could not be measured and scores 1.
func StabilityScore(cv *float64) float64 {
	if cv == nil {
		return 1
	}
	return 1 / (1 + *cv)
}

// IsEmpty reports whether the bundle was computed from zero successful samples.
func (b Bundle) IsEmpty() bool {
	return b.Metadata.SuccessfulSamples == 0
}
