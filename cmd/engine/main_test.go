package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldEphraim/defi-trade-engine/position"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

type quoteStub struct {
	prices map[string]float64 // venue id -> price
}

func (q *quoteStub) GetQuote(_ context.Context, venueID, asset string) (types.Quote, error) {
	price, ok := q.prices[venueID]
	if !ok {
		return types.Quote{}, errors.New("no quote")
	}
	return types.Quote{VenueID: venueID, Asset: asset, Price: price, Liquidity: 1_000_000}, nil
}

func (q *quoteStub) GetGasEstimate(context.Context) (float64, error) { return 2, nil }

func fillFixture() (*position.Manager, *quoteStub, map[types.ExecutionKey]types.Opportunity) {
	venues := []types.Venue{
		{ID: "uniswap-v3", RiskTier: 1, Supported: true},
		{ID: "aave-v3", RiskTier: 1, APY: 0.042, Supported: true},
	}
	market := &quoteStub{prices: map[string]float64{"uniswap-v3": 100, "aave-v3": 2100}}

	mgr := position.NewManager(market, nil, nil, types.AllocationStrategy{RebalanceThreshold: 0.2}, venues, position.Config{
		DefaultStopLoss:   0.10,
		DefaultTakeProfit: 0.20,
		MinAPY:            0.02,
		SupportedAssets:   []string{"ETH", "SOL"},
	})

	route := func(entry, exit types.Venue) *types.ScoredRoute {
		return &types.ScoredRoute{Path: types.RoutePath{Venues: []types.Venue{entry, exit}}}
	}
	uniswap := types.Venue{ID: "uniswap-v3", RiskTier: 1, Supported: true}
	aave := types.Venue{ID: "aave-v3", RiskTier: 1, APY: 0.042, Supported: true}

	opps := map[types.ExecutionKey]types.Opportunity{
		{Asset: "ETH", Side: types.SideSell}: {
			Asset: "ETH", Side: types.SideSell, Amount: 10,
			Route: route(aave, uniswap),
		},
		{Asset: "SOL", Side: types.SideBuy}: {
			Asset: "SOL", Side: types.SideBuy, Amount: 25,
			Route: route(uniswap, aave),
		},
	}
	return mgr, market, opps
}

func TestOpenExecutedPositionsFromFills(t *testing.T) {
	mgr, market, opps := fillFixture()

	results := []types.ExecutionResult{
		{Key: types.ExecutionKey{Asset: "ETH", Side: types.SideSell}, Success: true, Profit: 5},
		{Key: types.ExecutionKey{Asset: "SOL", Side: types.SideBuy}, Success: true, Profit: 3},
	}
	opened := openExecutedPositions(context.Background(), mgr, market, opps, results, 2.0, 0.05)
	require.Len(t, opened, 2)
	assert.Equal(t, 2, mgr.ActiveCount())

	byAsset := map[string]types.Position{}
	for _, pos := range opened {
		byAsset[pos.Asset] = pos
	}

	short := byAsset["ETH"]
	assert.Equal(t, types.KindLeveragedShort, short.Kind)
	assert.Equal(t, "uniswap-v3", short.VenueID)
	assert.InDelta(t, 2.0, short.Leverage, 1e-9)
	assert.InDelta(t, 0.05, short.BorrowingFee, 1e-9)
	assert.InDelta(t, 100.0, short.EntryPrice, 1e-9)
	assert.InDelta(t, 10.0, short.Amount, 1e-9)

	yield := byAsset["SOL"]
	assert.Equal(t, types.KindYield, yield.Kind)
	assert.Equal(t, "aave-v3", yield.VenueID)
	assert.InDelta(t, 1.0, yield.Leverage, 1e-9)
	assert.InDelta(t, 0.042, yield.EntryAPY, 1e-9)
	assert.InDelta(t, 2100.0, yield.EntryPrice, 1e-9)
}

func TestOpenExecutedPositionsSkipsFailures(t *testing.T) {
	mgr, market, opps := fillFixture()

	results := []types.ExecutionResult{
		{Key: types.ExecutionKey{Asset: "ETH", Side: types.SideSell}, Success: false, FailureReason: "insufficient liquidity"},
		{Key: types.ExecutionKey{Asset: "WBTC", Side: types.SideBuy}, Success: true}, // no matching opportunity
	}
	opened := openExecutedPositions(context.Background(), mgr, market, opps, results, 2.0, 0.05)
	assert.Empty(t, opened)
	assert.Equal(t, 0, mgr.ActiveCount())
}

func TestOpenExecutedPositionsFeedMonitorLoop(t *testing.T) {
	mgr, market, opps := fillFixture()

	results := []types.ExecutionResult{
		{Key: types.ExecutionKey{Asset: "ETH", Side: types.SideSell}, Success: true, Profit: 5},
	}
	opened := openExecutedPositions(context.Background(), mgr, market, opps, results, 3.0, 0)
	require.Len(t, opened, 1)

	// The opened short is now owned by the lifecycle manager: a 4% adverse
	// move at 3x leverage trips the default 10% stop.
	market.prices["uniswap-v3"] = 104
	mgr.MonitorTick(context.Background())

	assert.Equal(t, 0, mgr.ActiveCount())
	history := mgr.History()
	require.Len(t, history, 1)
	assert.Equal(t, types.CloseStopLoss, history[0].Reason)
}
