package scoring

import (
	"fmt"
	"math"

	"proxyscout/internal/stats"
	"proxyscout/internal/storage/models"
	pkgerrors "proxyscout/pkg/errors"
)

// Latency ceilings of the performance sub-score, in milliseconds.
const (
	meanCeilingMS   = 5000.0
	p95CeilingMS    = 8000.0
	medianCeilingMS = 4000.0
)

// Weights blends the three sub-scores into the composite score.
type Weights struct {
	Performance  float64 `json:"performance"`
	Stability    float64 `json:"stability"`
	Availability float64 `json:"availability"`
}

// DefaultWeights returns the default 0.4 / 0.35 / 0.25 blend.
func DefaultWeights() Weights {
	return Weights{Performance: 0.4, Stability: 0.35, Availability: 0.25}
}

func (w Weights) sum() float64 {
	return w.Performance + w.Stability + w.Availability
}

// Normalize validates w and rescales it to sum to 1.
func (w Weights) Normalize() (Weights, error) {
	if w.Performance < 0 || w.Stability < 0 || w.Availability < 0 {
		return w, fmt.Errorf("%w: negative weight in %+v", pkgerrors.ErrInvalidWeights, w)
	}
	total := w.sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return w, fmt.Errorf("%w: weights sum to %v", pkgerrors.ErrInvalidWeights, total)
	}
	if math.Abs(total-1) < 1e-9 {
		return w, nil
	}
	return Weights{
		Performance:  w.Performance / total,
		Stability:    w.Stability / total,
		Availability: w.Availability / total,
	}, nil
}

// Scores holds the sub-scores and blends of one candidate, all in [0,1].
type Scores struct {
	Performance  float64 `json:"performance"`
	Stability    float64 `json:"stability"`
	Availability float64 `json:"availability"`
	Composite    float64 `json:"composite"`
	QoS          float64 `json:"qos"`
}

// EvaluatedCandidate is a candidate together with its statistics and scores.
type EvaluatedCandidate struct {
	Candidate      models.Candidate `json:"candidate"`
	Stats          stats.Bundle     `json:"stats"`
	Scores         Scores           `json:"scores"`
	CompositeScore float64          `json:"composite_score"`
	QoSScore       float64          `json:"qos_score"`
	IsFallback     bool             `json:"is_fallback"`
	TotalSamples   int              `json:"total_samples"`
	Error          string           `json:"error,omitempty"` // set when the task failed before sampling
}

// IsWorking reports whether at least one sample of the candidate succeeded.
func (e *EvaluatedCandidate) IsWorking() bool {
	return e != nil && e.Stats.Metadata.SuccessfulSamples > 0
}

// Failed builds the record of a candidate whose task could not run at all.
func Failed(candidate models.Candidate, err error) *EvaluatedCandidate {
	rec := &EvaluatedCandidate{
		Candidate: candidate,
		Stats:     stats.Compute(nil, 0, stats.DefaultThresholds()),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// Evaluator converts statistic bundles into scores.
type Evaluator struct {
	weights Weights
}

// NewEvaluator creates an Evaluator. Weights that do not sum to 1 are
// normalized; negative or all-zero weights are rejected.
func NewEvaluator(w Weights) (*Evaluator, error) {
	normalized, err := w.Normalize()
	if err != nil {
		return nil, err
	}
	return &Evaluator{weights: normalized}, nil
}

// Weights returns the normalized weights in use.
func (e *Evaluator) Weights() Weights {
	return e.weights
}

// Score computes the sub-scores, composite and QoS score of b.
func (e *Evaluator) Score(b stats.Bundle) Scores {
	if b.IsEmpty() {
		return Scores{}
	}
	s := Scores{
		Performance:  performance(b),
		Stability:    stability(b),
		Availability: availability(b),
		QoS:          stats.Clamp01(b.API.QoSScore),
	}
	s.Composite = stats.Clamp01(
		e.weights.Performance*s.Performance +
			e.weights.Stability*s.Stability +
			e.weights.Availability*s.Availability,
	)
	return s
}

// Evaluate scores b and wraps it into an EvaluatedCandidate.
func (e *Evaluator) Evaluate(candidate models.Candidate, b stats.Bundle, totalSamples int, fallback bool) *EvaluatedCandidate {
	s := e.Score(b)
	return &EvaluatedCandidate{
		Candidate:      candidate,
		Stats:          b,
		Scores:         s,
		CompositeScore: s.Composite,
		QoSScore:       s.QoS,
		IsFallback:     fallback,
		TotalSamples:   totalSamples,
	}
}

func performance(b stats.Bundle) float64 {
	return stats.Clamp01(
		0.5*stats.LatencyScore(b.Basic.Mean, meanCeilingMS) +
			0.3*stats.LatencyScore(b.Basic.P95, p95CeilingMS) +
			0.2*stats.LatencyScore(b.Basic.Median, medianCeilingMS),
	)
}

func stability(b stats.Bundle) float64 {
	consistency := valueOr(b.Robustness.ConsistencyScore, 0)
	outliers := valueOr(b.Robustness.OutlierRatio, 1)
	return stats.Clamp01(
		0.4*stats.StabilityScore(b.Variability.CoefficientOfVariation) +
			0.35*consistency +
			0.25*(1-outliers),
	)
}

func availability(b stats.Bundle) float64 {
	return stats.Clamp01(
		0.6*b.SuccessRate +
			0.25*b.API.AvailabilityStability +
			0.15*(1-b.API.TimeoutRiskScore),
	)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
