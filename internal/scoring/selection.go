package scoring

import "go.uber.org/zap"

// Policy holds the thresholds a candidate must meet to be selected.
type Policy struct {
	MinComposite   float64
	MinQoS         float64
	MinSuccessRate float64
	MaxLatencyMS   float64 // 0 disables the latency ceiling

	Logger *zap.Logger
}

// DefaultPolicy returns the default selection thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinComposite:   0.6,
		MinQoS:         0.5,
		MinSuccessRate: 0.8,
		MaxLatencyMS:   5000,
	}
}

// Qualifies reports whether c meets every threshold of the policy.
func (p Policy) Qualifies(c *EvaluatedCandidate) bool {
	if !c.IsWorking() {
		return false
	}
	if c.CompositeScore < p.MinComposite || c.QoSScore < p.MinQoS {
		return false
	}
	if c.Stats.SuccessRate < p.MinSuccessRate {
		return false
	}
	if p.MaxLatencyMS > 0 && c.Stats.Basic.Mean != nil && *c.Stats.Basic.Mean > p.MaxLatencyMS {
		return false
	}
	return true
}

// Select picks the first ranked candidate that qualifies. When none does, the
// best working candidate is returned as a degraded pick and a warning is
// logged. It returns nil when no candidate works at all.
func (p Policy) Select(ranked []*EvaluatedCandidate) *EvaluatedCandidate {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, c := range ranked {
		if p.Qualifies(c) {
			logger.Info("candidate selected",
				zap.String("address", c.Candidate.Address),
				zap.Float64("composite", c.CompositeScore),
				zap.Float64("qos", c.QoSScore),
				zap.Bool("fallback", c.IsFallback),
			)
			return c
		}
	}

	for _, c := range ranked {
		if c.IsWorking() {
			logger.Warn("no candidate met the selection thresholds, using best working candidate",
				zap.String("address", c.Candidate.Address),
				zap.Float64("composite", c.CompositeScore),
				zap.Float64("qos", c.QoSScore),
				zap.Float64("min_composite", p.MinComposite),
				zap.Float64("min_qos", p.MinQoS),
			)
			return c
		}
	}

	logger.Warn("no working candidate found", zap.Int("candidates", len(ranked)))
	return nil
}
