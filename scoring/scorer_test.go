package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

type stubPrediction struct {
	p   types.Prediction
	err error
}

func (s stubPrediction) Predict(context.Context, string) (types.Prediction, error) {
	return s.p, s.err
}

type stubSentiment struct {
	s   types.Sentiment
	err error
}

func (s stubSentiment) Sentiment(context.Context, string) (types.Sentiment, error) {
	return s.s, s.err
}

type stubWhale struct {
	w   types.WhaleActivity
	err error
}

func (s stubWhale) Activity(context.Context, string) (types.WhaleActivity, error) {
	return s.w, s.err
}

func newTestScorer() *Scorer {
	return NewScorer(
		stubPrediction{p: types.Prediction{Direction: "up", Confidence: 0.8}},
		stubSentiment{s: types.Sentiment{Score: 0.4, Confidence: 0.6}},
		stubWhale{w: types.WhaleActivity{NetFlow: 1_000_000, Confidence: 0.5}},
		100,
	)
}

func TestCompositeWeightsSumToOne(t *testing.T) {
	sum := WeightProfit + WeightCostEff + WeightWhale + WeightPrediction
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestCompositeMath(t *testing.T) {
	s := newTestScorer()

	o := types.Opportunity{
		Asset:          "ETH",
		ExpectedProfit: 100,
		EstimatedCost:  25,
		Signals: types.Signals{
			WhaleConfidence:      0.5,
			PredictionConfidence: 0.8,
		},
	}
	// profitTerm = 100/(100+100) = 0.5, costTerm = 100/125 = 0.8
	want := 0.40*0.5 + 0.30*0.8 + 0.15*0.5 + 0.15*0.8
	assert.InDelta(t, want, s.Composite(o), 1e-9)
}

func TestCompositeZeroProfit(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name   string
		profit float64
	}{
		{"zero", 0},
		{"negative", -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := types.Opportunity{
				Asset:          "ETH",
				ExpectedProfit: tt.profit,
				EstimatedCost:  25,
				Signals:        types.Signals{WhaleConfidence: 0.5, PredictionConfidence: 0.8},
			}
			// Profit and cost-efficiency terms vanish; only the signal
			// confidences contribute.
			want := 0.15*0.5 + 0.15*0.8
			assert.InDelta(t, want, s.Composite(o), 1e-9)
		})
	}
}

func TestCompositeBounds(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name string
		o    types.Opportunity
	}{
		{"everything maxed", types.Opportunity{ExpectedProfit: 1e12, EstimatedCost: 0.01, Signals: types.Signals{WhaleConfidence: 5, PredictionConfidence: 5}}},
		{"everything zero", types.Opportunity{}},
		{"negative confidences", types.Opportunity{ExpectedProfit: 50, EstimatedCost: 10, Signals: types.Signals{WhaleConfidence: -1, PredictionConfidence: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Composite(tt.o)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCompositeIsPure(t *testing.T) {
	s := newTestScorer()
	o := types.Opportunity{ExpectedProfit: 75, EstimatedCost: 20, Signals: types.Signals{WhaleConfidence: 0.3, PredictionConfidence: 0.6}}
	assert.Equal(t, s.Composite(o), s.Composite(o))
}

func TestGatherSignals(t *testing.T) {
	s := newTestScorer()
	sig := s.GatherSignals(context.Background(), "ETH")

	assert.Equal(t, "up", sig.PredictionDirection)
	assert.InDelta(t, 0.8, sig.PredictionConfidence, 1e-9)
	assert.InDelta(t, 0.4, sig.SentimentScore, 1e-9)
	assert.InDelta(t, 0.6, sig.SentimentConfidence, 1e-9)
	assert.InDelta(t, 1_000_000.0, sig.WhaleNetFlow, 1e-9)
	assert.InDelta(t, 0.5, sig.WhaleConfidence, 1e-9)
}

func TestGatherSignalsProviderFailuresLeaveZeros(t *testing.T) {
	s := NewScorer(
		stubPrediction{err: errors.New("timeout")},
		stubSentiment{s: types.Sentiment{Score: -0.2, Confidence: 0.9}},
		stubWhale{err: errors.New("timeout")},
		100,
	)
	sig := s.GatherSignals(context.Background(), "ETH")

	assert.Empty(t, sig.PredictionDirection)
	assert.Zero(t, sig.PredictionConfidence)
	assert.Zero(t, sig.WhaleConfidence)
	assert.Zero(t, sig.WhaleNetFlow)
	assert.InDelta(t, -0.2, sig.SentimentScore, 1e-9)
	assert.InDelta(t, 0.9, sig.SentimentConfidence, 1e-9)
}

func TestGatherSignalsClampsConfidence(t *testing.T) {
	s := NewScorer(
		stubPrediction{p: types.Prediction{Direction: "down", Confidence: 1.7}},
		stubSentiment{s: types.Sentiment{Score: 0.1, Confidence: -0.3}},
		stubWhale{w: types.WhaleActivity{Confidence: 2.5}},
		100,
	)
	sig := s.GatherSignals(context.Background(), "ETH")

	assert.InDelta(t, 1.0, sig.PredictionConfidence, 1e-9)
	assert.Zero(t, sig.SentimentConfidence)
	assert.InDelta(t, 1.0, sig.WhaleConfidence, 1e-9)
}

func TestScoreRejectsEmptyAsset(t *testing.T) {
	s := newTestScorer()
	_, err := s.Score(context.Background(), types.Opportunity{})
	assert.True(t, errors.Is(err, types.ErrInvalidParameters))
}

func TestScoreFillsSignalsAndComposite(t *testing.T) {
	s := newTestScorer()
	scored, err := s.Score(context.Background(), types.Opportunity{
		Asset:          "ETH",
		ExpectedProfit: 50,
		EstimatedCost:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, "up", scored.Signals.PredictionDirection)
	assert.Greater(t, scored.CompositeScore, 0.0)
}

func TestScoreAllDropsZeroComposites(t *testing.T) {
	// No profit and no signal confidence leaves the composite at zero.
	s := NewScorer(
		stubPrediction{err: errors.New("down")},
		stubSentiment{err: errors.New("down")},
		stubWhale{err: errors.New("down")},
		100,
	)
	opps := []types.Opportunity{
		{Asset: "ETH", ExpectedProfit: 0},
		{Asset: "SOL", ExpectedProfit: 40, EstimatedCost: 5},
		{Asset: ""},
	}
	accepted := s.ScoreAll(context.Background(), opps)
	require.Len(t, accepted, 1)
	assert.Equal(t, "SOL", accepted[0].Asset)
}
