package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

type quoteTable struct {
	prices map[string]float64 // venue id -> price
	gas    float64
}

func (q *quoteTable) GetQuote(_ context.Context, venueID, asset string) (types.Quote, error) {
	price, ok := q.prices[venueID]
	if !ok {
		return types.Quote{}, errors.New("unknown venue")
	}
	return types.Quote{VenueID: venueID, Asset: asset, Price: price, Liquidity: 1_000_000}, nil
}

func (q *quoteTable) GetGasEstimate(context.Context) (float64, error) { return q.gas, nil }

func TestPaperSettlementExecute(t *testing.T) {
	market := &quoteTable{prices: map[string]float64{"entry": 100, "exit": 102}, gas: 2}
	p := NewPaperSettlement(market, 10_000)

	route := types.RoutePath{Venues: []types.Venue{
		{ID: "entry", FeeRate: 0.003},
		{ID: "exit", FeeRate: 0.001},
	}}
	res, err := p.Execute(context.Background(), "ETH", route, 10)
	require.NoError(t, err)

	// Fees 10*0.003 + 10*0.001 = 0.04, gas 2 per hop = 4, cost 4.04.
	// Gross edge 10*(102-100) = 20.
	assert.True(t, res.Success)
	assert.InDelta(t, 4.04, res.Cost, 1e-9)
	assert.InDelta(t, 15.96, res.Profit, 1e-9)

	assert.InDelta(t, 10_015.96, p.Balance(), 1e-9)
	assert.InDelta(t, 15.96, p.TotalPnL(), 1e-9)
}

func TestPaperSettlementSingleHop(t *testing.T) {
	// Entry and exit are the same venue: no edge, only costs.
	market := &quoteTable{prices: map[string]float64{"only": 100}, gas: 1}
	p := NewPaperSettlement(market, 1_000)

	route := types.RoutePath{Venues: []types.Venue{{ID: "only", FeeRate: 0.002}}}
	res, err := p.Execute(context.Background(), "ETH", route, 50)
	require.NoError(t, err)

	assert.InDelta(t, 50*0.002+1, res.Cost, 1e-9)
	assert.InDelta(t, -(50*0.002 + 1), res.Profit, 1e-9)
	assert.InDelta(t, 1_000+res.Profit, p.Balance(), 1e-9)
}

func TestPaperSettlementEmptyRoute(t *testing.T) {
	p := NewPaperSettlement(&quoteTable{}, 1_000)
	_, err := p.Execute(context.Background(), "ETH", types.RoutePath{}, 10)
	assert.Error(t, err)
}

func TestPaperSettlementQuoteFailure(t *testing.T) {
	market := &quoteTable{prices: map[string]float64{"entry": 100}}
	p := NewPaperSettlement(market, 1_000)

	route := types.RoutePath{Venues: []types.Venue{
		{ID: "entry", FeeRate: 0.003},
		{ID: "gone", FeeRate: 0.001},
	}}
	_, err := p.Execute(context.Background(), "ETH", route, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit quote unavailable")

	// Failed settlements never move the book.
	assert.InDelta(t, 1_000.0, p.Balance(), 1e-9)
	assert.Zero(t, p.TotalPnL())
}
