package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OldEphraim/defi-trade-engine/providers"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// Config holds the coordinator's admission bounds.
type Config struct {
	MaxConcurrentExecutions int     // >= 1
	MinProfitThreshold      float64 // expected profit as a fraction of amount
}

// Coordinator executes the highest-scoring opportunities as a bounded set of
// concurrent tasks. Each execution is an isolated failure domain: one
// failure never aborts or rolls back a sibling.
type Coordinator struct {
	market     providers.MarketDataProvider
	settlement providers.SettlementExecutor
	ledger     providers.ProfitLedger
	locks      *KeyLock
	cfg        Config
}

// NewCoordinator wires the coordinator to its collaborators. ledger may be
// nil when nothing should be persisted (tests, dry runs).
func NewCoordinator(market providers.MarketDataProvider, settlement providers.SettlementExecutor, ledger providers.ProfitLedger, locks *KeyLock, cfg Config) (*Coordinator, error) {
	if cfg.MaxConcurrentExecutions < 1 {
		return nil, fmt.Errorf("%w: maxConcurrentExecutions must be >= 1, got %d", types.ErrInvalidParameters, cfg.MaxConcurrentExecutions)
	}
	if market == nil || settlement == nil || locks == nil {
		return nil, fmt.Errorf("%w: nil collaborator", types.ErrInvalidParameters)
	}
	return &Coordinator{
		market:     market,
		settlement: settlement,
		ledger:     ledger,
		locks:      locks,
		cfg:        cfg,
	}, nil
}

// ExecuteParallel runs one coordinator cycle over the given opportunities.
//
// Opportunities are stable-sorted by composite score, the top
// MaxConcurrentExecutions are selected, and each selected opportunity must
// claim its (asset, side) key before running. Busy keys and everything past
// the bound are deferred to the next cycle, not failed. Per-opportunity
// errors are captured in the aggregate summary and never thrown across the
// batch boundary.
func (c *Coordinator) ExecuteParallel(ctx context.Context, opps []types.Opportunity) (types.ExecutionSummary, error) {
	if len(opps) == 0 {
		return types.ExecutionSummary{}, fmt.Errorf("%w: empty opportunity list", types.ErrInvalidParameters)
	}

	ranked := make([]types.Opportunity, len(opps))
	copy(ranked, opps)
	// Stable: ties keep original relative order so selection is deterministic.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})

	summary := types.ExecutionSummary{}

	// Selection happens before claiming: the top MaxConcurrentExecutions
	// opportunities are fixed first, and a busy key inside that set leaves
	// its slot empty rather than backfilling a lower-ranked candidate.
	var selected []types.Opportunity
	for _, o := range ranked {
		if o.Amount > 0 && o.ExpectedProfit/o.Amount < c.cfg.MinProfitThreshold {
			continue
		}
		if len(selected) >= c.cfg.MaxConcurrentExecutions {
			summary.Deferred++
			continue
		}
		selected = append(selected, o)
	}

	var claimed []types.Opportunity
	for _, o := range selected {
		if !c.locks.Claim(o.Key()) {
			// Another in-flight execution owns this key; try again later.
			summary.Deferred++
			continue
		}
		claimed = append(claimed, o)
	}

	results := make([]types.ExecutionResult, len(claimed))
	var wg sync.WaitGroup
	for i, o := range claimed {
		wg.Add(1)
		go func(i int, o types.Opportunity) {
			defer wg.Done()
			// Key released on every exit path, panic included.
			defer c.locks.Release(o.Key())
			results[i] = c.executeOne(ctx, o)
		}(i, o)
	}
	wg.Wait()

	for _, res := range results {
		if res.Success {
			summary.Successful++
			summary.TotalProfit += res.Profit
		} else {
			summary.Failed++
		}
		summary.TotalCost += res.Cost
		summary.Results = append(summary.Results, res)

		if c.ledger != nil {
			// Ledger hiccups must not fail the batch; the result itself is
			// already part of the summary.
			_ = c.ledger.RecordExecution(ctx, res)
		}
	}

	return summary, nil
}

// executeOne runs a single claimed opportunity: pre-flight liquidity check,
// then the settlement call. A result is always produced, failure included.
func (c *Coordinator) executeOne(ctx context.Context, o types.Opportunity) types.ExecutionResult {
	res := types.ExecutionResult{Key: o.Key(), Timestamp: time.Now().UTC()}

	if o.Route == nil || o.Route.Path.Hops() == 0 {
		res.FailureReason = types.ErrNoViableRoute.Error()
		return res
	}

	// Fail fast before touching shared state: both ends of the route need
	// enough depth for the trade size right now, not at scoring time.
	if err := c.preflight(ctx, o); err != nil {
		res.FailureReason = err.Error()
		return res
	}

	settled, err := c.settlement.Execute(ctx, o.Asset, o.Route.Path, o.Amount)
	if err != nil {
		res.Cost = settled.Cost
		res.FailureReason = fmt.Errorf("%w: %v", types.ErrExecutionFailure, err).Error()
		return res
	}

	res.Success = settled.Success
	res.Profit = settled.Profit
	res.Cost = settled.Cost
	if !settled.Success {
		res.FailureReason = types.ErrExecutionFailure.Error()
	}
	return res
}

func (c *Coordinator) preflight(ctx context.Context, o types.Opportunity) error {
	hops := o.Route.Path.Venues
	ends := []types.Venue{hops[0]}
	if len(hops) > 1 {
		ends = append(ends, hops[len(hops)-1])
	}

	for _, v := range ends {
		quote, err := c.market.GetQuote(ctx, v.ID, o.Asset)
		if err != nil {
			return fmt.Errorf("%w: quote %s unavailable: %v", types.ErrInsufficientLiquidity, v.ID, err)
		}
		if quote.Liquidity < o.Amount {
			return fmt.Errorf("%w: venue %s has %.2f, need %.2f", types.ErrInsufficientLiquidity, v.ID, quote.Liquidity, o.Amount)
		}
	}
	return nil
}
