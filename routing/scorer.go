package routing

import (
	"context"
	"fmt"

	"github.com/OldEphraim/defi-trade-engine/providers"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// Efficiency weights. These must sum to 1.0.
const (
	WeightLatency   = 0.20
	WeightCost      = 0.30
	WeightLiquidity = 0.25
	WeightSlippage  = 0.15
	WeightSentiment = 0.05
	WeightMarket    = 0.05
)

// Config bounds route viability and fixes the normalization references used
// by the efficiency score.
type Config struct {
	MinLiquidity float64 // paths below this aggregate liquidity are not viable
	MaxSlippage  float64 // paths above this aggregate slippage are not viable
	RefLatencyMs float64 // latency at which the latency term halves
	RefCostRate  float64 // cost as a fraction of notional at which the cost term halves
	DepthFactor  float64 // liquidity saturates at amount * DepthFactor
}

// DefaultConfig returns the reference normalization used when the engine
// config leaves the tuning knobs unset.
func DefaultConfig() Config {
	return Config{
		MinLiquidity: 10_000,
		MaxSlippage:  0.05,
		RefLatencyMs: 250,
		RefCostRate:  0.01,
		DepthFactor:  10,
	}
}

// Scorer computes RouteMetrics for candidate paths from live quotes.
type Scorer struct {
	market providers.MarketDataProvider
	cfg    Config
}

// NewScorer creates a route scorer backed by the given market data provider.
func NewScorer(market providers.MarketDataProvider, cfg Config) *Scorer {
	if cfg.RefLatencyMs <= 0 {
		cfg.RefLatencyMs = DefaultConfig().RefLatencyMs
	}
	if cfg.RefCostRate <= 0 {
		cfg.RefCostRate = DefaultConfig().RefCostRate
	}
	if cfg.DepthFactor <= 0 {
		cfg.DepthFactor = DefaultConfig().DepthFactor
	}
	return &Scorer{market: market, cfg: cfg}
}

// Score accumulates per-hop latency, cost, liquidity and slippage for the
// path at the given trade size, then computes the efficiency score. The
// sentiment and market terms are externally supplied 0-1 signals.
func (s *Scorer) Score(ctx context.Context, path types.RoutePath, amount float64, asset string, sentimentTerm, marketTerm float64) (types.RouteMetrics, error) {
	if amount <= 0 {
		return types.RouteMetrics{}, fmt.Errorf("%w: amount must be positive, got %f", types.ErrInvalidParameters, amount)
	}
	if path.Hops() == 0 {
		return types.RouteMetrics{}, fmt.Errorf("%w: empty path", types.ErrInvalidParameters)
	}

	gas, err := s.market.GetGasEstimate(ctx)
	if err != nil {
		return types.RouteMetrics{}, fmt.Errorf("gas estimate: %w", err)
	}

	var m types.RouteMetrics
	for _, v := range path.Venues {
		quote, err := s.market.GetQuote(ctx, v.ID, asset)
		if err != nil {
			return types.RouteMetrics{}, fmt.Errorf("quote %s/%s: %w", v.ID, asset, err)
		}

		m.LatencyMs += v.LatencyMs
		m.Cost += amount*v.FeeRate + gas
		m.Liquidity += quote.Liquidity
		// Constant-product style impact estimate for this hop.
		if quote.Liquidity > 0 {
			m.Slippage += amount / (quote.Liquidity + amount)
		} else {
			m.Slippage += 1
		}
	}

	m.EfficiencyScore = s.Efficiency(m, amount, sentimentTerm, marketTerm)
	return m, nil
}

// Efficiency is a pure function: identical metrics and signals always yield
// the identical score. All terms are normalized into 0-1 before weighting.
func (s *Scorer) Efficiency(m types.RouteMetrics, amount, sentimentTerm, marketTerm float64) float64 {
	latencyTerm := s.cfg.RefLatencyMs / (s.cfg.RefLatencyMs + m.LatencyMs)

	refCost := amount * s.cfg.RefCostRate
	costTerm := refCost / (refCost + m.Cost)

	liquidityTerm := clamp01(m.Liquidity / (amount * s.cfg.DepthFactor))

	slippageTerm := 1.0
	if s.cfg.MaxSlippage > 0 {
		slippageTerm = 1 - clamp01(m.Slippage/s.cfg.MaxSlippage)
	}

	return WeightLatency*latencyTerm +
		WeightCost*costTerm +
		WeightLiquidity*liquidityTerm +
		WeightSlippage*slippageTerm +
		WeightSentiment*clamp01(sentimentTerm) +
		WeightMarket*clamp01(marketTerm)
}

// Viable reports whether a path clears the liquidity floor and slippage
// ceiling. Non-viable paths are excluded before ranking.
func (s *Scorer) Viable(m types.RouteMetrics) bool {
	return m.Liquidity >= s.cfg.MinLiquidity && m.Slippage <= s.cfg.MaxSlippage
}

// ScoreAll scores every candidate path. Paths that fail to score (provider
// errors) are skipped; the caller only ranks what could be measured.
func (s *Scorer) ScoreAll(ctx context.Context, paths []types.RoutePath, amount float64, asset string, sentimentTerm, marketTerm float64) []types.ScoredRoute {
	scored := make([]types.ScoredRoute, 0, len(paths))
	for _, p := range paths {
		m, err := s.Score(ctx, p, amount, asset, sentimentTerm, marketTerm)
		if err != nil {
			continue
		}
		scored = append(scored, types.ScoredRoute{Path: p, Metrics: m})
	}
	return scored
}

// SelectBest returns the viable route with the highest efficiency score.
// Ties keep the earliest candidate so selection stays deterministic.
func (s *Scorer) SelectBest(scored []types.ScoredRoute) (types.ScoredRoute, error) {
	best := types.ScoredRoute{}
	found := false
	for _, sr := range scored {
		if !s.Viable(sr.Metrics) {
			continue
		}
		if !found || sr.Metrics.EfficiencyScore > best.Metrics.EfficiencyScore {
			best = sr
			found = true
		}
	}
	if !found {
		return types.ScoredRoute{}, types.ErrNoViableRoute
	}
	return best, nil
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
