package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"proxyscout/internal/stats"
	"proxyscout/internal/storage/models"
	pkgerrors "proxyscout/pkg/errors"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(DefaultWeights())
	require.NoError(t, err)
	return e
}

func TestWeightsNormalize(t *testing.T) {
	t.Run("default weights untouched", func(t *testing.T) {
		w, err := DefaultWeights().Normalize()
		require.NoError(t, err)
		assert.Equal(t, DefaultWeights(), w)
	})

	t.Run("rescaled to one", func(t *testing.T) {
		w, err := Weights{Performance: 2, Stability: 1, Availability: 1}.Normalize()
		require.NoError(t, err)
		assert.InDelta(t, 0.5, w.Performance, 1e-9)
		assert.InDelta(t, 0.25, w.Stability, 1e-9)
		assert.InDelta(t, 1.0, w.sum(), 1e-9)
	})

	t.Run("rejects negative and zero", func(t *testing.T) {
		_, err := NewEvaluator(Weights{Performance: -1, Stability: 1, Availability: 1})
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidWeights))
		_, err = NewEvaluator(Weights{})
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidWeights))
	})
}

func TestScoreSteadyCandidate(t *testing.T) {
	e := newEvaluator(t)
	b := stats.Compute([]float64{50, 60, 55, 58, 62}, 1, stats.DefaultThresholds())

	s := e.Score(b)
	assert.Greater(t, s.Performance, 0.95)
	assert.Greater(t, s.Stability, 0.9)
	assert.Greater(t, s.Availability, 0.95)
	assert.GreaterOrEqual(t, s.Composite, 0.8)
	assert.Equal(t, b.API.QoSScore, s.QoS)
}

func TestScoreEmptyBundleIsZero(t *testing.T) {
	e := newEvaluator(t)
	rec := e.Evaluate(models.Candidate{Address: "1.2.3.4:80"}, stats.Compute(nil, 0, stats.DefaultThresholds()), 5, true)

	assert.False(t, rec.IsWorking())
	assert.Equal(t, 0.0, rec.CompositeScore)
	assert.Equal(t, 0.0, rec.QoSScore)
	assert.True(t, rec.IsFallback)
}

func TestScoresStayInUnitInterval(t *testing.T) {
	e := newEvaluator(t)
	inputs := []struct {
		latencies []float64
		rate      float64
	}{
		{nil, 0},
		{[]float64{0}, 1},
		{[]float64{1e9, 2e9}, 1},
		{[]float64{1, 100000}, 0.01},
		{[]float64{5, 5, 5, 5}, 2},
		{[]float64{-10, 20}, -1},
	}
	for _, in := range inputs {
		s := e.Score(stats.Compute(in.latencies, in.rate, stats.DefaultThresholds()))
		for _, v := range []float64{s.Performance, s.Stability, s.Availability, s.Composite, s.QoS} {
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestFailedRecord(t *testing.T) {
	rec := Failed(models.Candidate{Address: "bogus"}, pkgerrors.ErrInvalidAddress)
	assert.False(t, rec.IsWorking())
	assert.Equal(t, 0.0, rec.CompositeScore)
	assert.Equal(t, pkgerrors.ErrInvalidAddress.Error(), rec.Error)
}

func record(addr string, composite, qos float64, working bool) *EvaluatedCandidate {
	rec := &EvaluatedCandidate{
		Candidate:      models.Candidate{Address: addr},
		CompositeScore: composite,
		QoSScore:       qos,
	}
	if working {
		mean := 100.0
		rec.Stats.Metadata.SuccessfulSamples = 5
		rec.Stats.SuccessRate = 1
		rec.Stats.Basic.Mean = &mean
	}
	return rec
}

func TestRankWorkingFirst(t *testing.T) {
	results := []*EvaluatedCandidate{
		record("a:1", 0.0, 0, false),
		record("b:1", 0.3, 0.3, true),
		nil,
		record("c:1", 0.9, 0.9, true),
	}
	ranked := Rank(results)
	require.Len(t, ranked, 3)
	assert.Equal(t, "c:1", ranked[0].Candidate.Address)
	assert.Equal(t, "b:1", ranked[1].Candidate.Address)
	assert.Equal(t, "a:1", ranked[2].Candidate.Address)
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	a := record("10.0.0.1:80", 0.7, 0.6, true)
	b := record("10.0.0.2:80", 0.7, 0.6, true)
	c := record("10.0.0.3:80", 0.2, 0.6, true)
	d := record("10.0.0.4:80", 0, 0, false)
	e := record("10.0.0.5:80", 0, 0, false)

	assert.Equal(t, []*EvaluatedCandidate{a, b, c, d, e}, Rank([]*EvaluatedCandidate{d, c, a, e, b}))
	assert.Equal(t, []*EvaluatedCandidate{b, a, c, e, d}, Rank([]*EvaluatedCandidate{e, b, d, c, a}))
}

func TestSelectPrefersQualifyingOverHigherComposite(t *testing.T) {
	qualifying := record("1.1.1.1:80", 0.7, 0.55, true)
	lowQoS := record("2.2.2.2:80", 0.9, 0.4, true)

	ranked := Rank([]*EvaluatedCandidate{qualifying, lowQoS})
	require.Equal(t, lowQoS, ranked[0])

	got := DefaultPolicy().Select(ranked)
	assert.Equal(t, qualifying, got)
}

func TestSelectDegradedPick(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := DefaultPolicy()
	p.Logger = zap.New(core)

	weak := record("3.3.3.3:80", 0.5, 0.3, true)
	weaker := record("4.4.4.4:80", 0.4, 0.2, true)
	dead := record("5.5.5.5:80", 0, 0, false)

	got := p.Select(Rank([]*EvaluatedCandidate{dead, weaker, weak}))
	assert.Equal(t, weak, got)
	assert.Equal(t, 1, logs.FilterMessageSnippet("best working candidate").Len())
}

func TestSelectNone(t *testing.T) {
	p := DefaultPolicy()
	assert.Nil(t, p.Select(nil))
	assert.Nil(t, p.Select([]*EvaluatedCandidate{record("6.6.6.6:80", 0.99, 0.99, false)}))
}

func TestQualifiesRateAndLatency(t *testing.T) {
	p := DefaultPolicy()

	rec := record("7.7.7.7:80", 0.8, 0.8, true)
	assert.True(t, p.Qualifies(rec))

	rec.Stats.SuccessRate = 0.5
	assert.False(t, p.Qualifies(rec))

	rec.Stats.SuccessRate = 1
	slow := 6000.0
	rec.Stats.Basic.Mean = &slow
	assert.False(t, p.Qualifies(rec))

	p.MaxLatencyMS = 0
	assert.True(t, p.Qualifies(rec))
}
