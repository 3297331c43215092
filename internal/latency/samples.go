package latency

import "proxyscout/internal/storage/models"

// Fallback trigger thresholds on the primary pass.
const (
	minSuccessfulSamples = 3
	minSuccessRate       = 0.3
)

// SampleSet is the ordered collection of probe outcomes of one candidate.
type SampleSet struct {
	Outcomes []models.ProbeOutcome
	Fallback bool
}

func (s *SampleSet) add(o models.ProbeOutcome) {
	s.Outcomes = append(s.Outcomes, o)
}

// Len returns the number of probes taken.
func (s *SampleSet) Len() int {
	return len(s.Outcomes)
}

// Successful returns the number of working outcomes that carry a latency.
func (s *SampleSet) Successful() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Working && o.LatencyMS != nil {
			n++
		}
	}
	return n
}

// SuccessRate returns successful / total, or 0 for an empty set.
func (s *SampleSet) SuccessRate() float64 {
	if len(s.Outcomes) == 0 {
		return 0
	}
	return float64(s.Successful()) / float64(len(s.Outcomes))
}

// Latencies returns the latencies of the working outcomes in probe order.
func (s *SampleSet) Latencies() []float64 {
	out := make([]float64, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		if o.Working && o.LatencyMS != nil {
			out = append(out, *o.LatencyMS)
		}
	}
	return out
}

// ErrorCounts tallies failed outcomes by kind.
func (s *SampleSet) ErrorCounts() map[models.ErrorKind]int {
	counts := make(map[models.ErrorKind]int)
	for _, o := range s.Outcomes {
		if !o.Working {
			counts[o.ErrorKind]++
		}
	}
	return counts
}

// NeedsFallback reports whether the set carries too little signal to be trusted.
func (s *SampleSet) NeedsFallback() bool {
	return s.Successful() < minSuccessfulSamples || s.SuccessRate() < minSuccessRate
}
