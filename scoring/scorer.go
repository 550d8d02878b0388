// Package scoring ranks candidate opportunities by a composite score built
// from weighted external signals.
package scoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/OldEphraim/defi-trade-engine/providers"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// Composite weights. These must sum to 1.0.
const (
	WeightProfit     = 0.40
	WeightCostEff    = 0.30
	WeightWhale      = 0.15
	WeightPrediction = 0.15
)

// Scorer computes composite opportunity scores. All scores are 0-1 fractions.
type Scorer struct {
	prediction providers.PredictionProvider
	sentiment  providers.SentimentProvider
	whale      providers.WhaleActivityProvider

	// profitRef is the expected profit at which the profit term reaches 0.5.
	profitRef float64
}

// NewScorer creates an opportunity scorer over the three signal providers.
// profitRef must be positive; it anchors profit normalization.
func NewScorer(prediction providers.PredictionProvider, sentiment providers.SentimentProvider, whale providers.WhaleActivityProvider, profitRef float64) *Scorer {
	if profitRef <= 0 {
		profitRef = 100
	}
	return &Scorer{
		prediction: prediction,
		sentiment:  sentiment,
		whale:      whale,
		profitRef:  profitRef,
	}
}

// GatherSignals fetches prediction, sentiment and whale activity for the
// asset concurrently. A failed provider leaves its fields zeroed rather than
// failing the whole opportunity.
func (s *Scorer) GatherSignals(ctx context.Context, asset string) types.Signals {
	var (
		sig types.Signals
		mu  sync.Mutex
		wg  sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		if p, err := s.prediction.Predict(ctx, asset); err == nil {
			mu.Lock()
			sig.PredictionDirection = p.Direction
			sig.PredictionConfidence = clamp01(p.Confidence)
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		if sn, err := s.sentiment.Sentiment(ctx, asset); err == nil {
			mu.Lock()
			sig.SentimentScore = sn.Score
			sig.SentimentConfidence = clamp01(sn.Confidence)
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		if w, err := s.whale.Activity(ctx, asset); err == nil {
			mu.Lock()
			sig.WhaleNetFlow = w.NetFlow
			sig.WhaleConfidence = clamp01(w.Confidence)
			mu.Unlock()
		}
	}()
	wg.Wait()

	return sig
}

// Composite is a pure function of the opportunity's profit figures and
// signals. Identical input always yields the identical 0-1 score.
func (s *Scorer) Composite(o types.Opportunity) float64 {
	profitTerm := 0.0
	costTerm := 0.0
	if o.ExpectedProfit > 0 {
		profitTerm = o.ExpectedProfit / (o.ExpectedProfit + s.profitRef)
		costTerm = o.ExpectedProfit / (o.ExpectedProfit + o.EstimatedCost)
	}

	return WeightProfit*profitTerm +
		WeightCostEff*costTerm +
		WeightWhale*clamp01(o.Signals.WhaleConfidence) +
		WeightPrediction*clamp01(o.Signals.PredictionConfidence)
}

// Score fills in signals and the composite score for a single opportunity.
func (s *Scorer) Score(ctx context.Context, o types.Opportunity) (types.Opportunity, error) {
	if o.Asset == "" {
		return o, fmt.Errorf("%w: opportunity without asset", types.ErrInvalidParameters)
	}
	o.Signals = s.GatherSignals(ctx, o.Asset)
	o.CompositeScore = s.Composite(o)
	return o, nil
}

// ScoreAll scores a batch and keeps only opportunities with a positive
// composite score. That is the sole filtering rule at this stage; liquidity
// filtering happens later in the coordinator against fresher quotes.
func (s *Scorer) ScoreAll(ctx context.Context, opps []types.Opportunity) []types.Opportunity {
	accepted := make([]types.Opportunity, 0, len(opps))
	for _, o := range opps {
		scored, err := s.Score(ctx, o)
		if err != nil {
			continue
		}
		if scored.CompositeScore > 0 {
			accepted = append(accepted, scored)
		}
	}
	return accepted
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
