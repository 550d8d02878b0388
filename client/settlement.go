package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/OldEphraim/defi-trade-engine/providers"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// PaperSettlement simulates trade settlement against live quotes without
// touching real funds. Fees accrue per hop from each venue's fee rate and the
// realized profit is the quoted edge minus those fees.
//
// Implements providers.SettlementExecutor.
type PaperSettlement struct {
	market providers.MarketDataProvider

	mu       sync.Mutex
	balance  float64
	totalPnL float64
}

func NewPaperSettlement(market providers.MarketDataProvider, initialBalance float64) *PaperSettlement {
	return &PaperSettlement{market: market, balance: initialBalance}
}

func (p *PaperSettlement) Execute(ctx context.Context, asset string, route types.RoutePath, amount float64) (providers.SettlementResult, error) {
	if len(route.Venues) == 0 {
		return providers.SettlementResult{}, fmt.Errorf("empty route")
	}

	var fees float64
	for _, v := range route.Venues {
		fees += amount * v.FeeRate
	}

	gas, err := p.market.GetGasEstimate(ctx)
	if err != nil {
		gas = 0
	}
	cost := fees + gas*float64(len(route.Venues))

	// Realized edge: price difference between entry and exit venues for the
	// traded amount, read from the freshest quotes available.
	first := route.Venues[0]
	last := route.Venues[len(route.Venues)-1]

	entryQuote, err := p.market.GetQuote(ctx, first.ID, asset)
	if err != nil {
		return providers.SettlementResult{}, fmt.Errorf("entry quote unavailable: %w", err)
	}
	exitQuote, err := p.market.GetQuote(ctx, last.ID, asset)
	if err != nil {
		return providers.SettlementResult{}, fmt.Errorf("exit quote unavailable: %w", err)
	}

	gross := amount * (exitQuote.Price - entryQuote.Price)
	profit := gross - cost

	p.mu.Lock()
	p.balance += profit
	p.totalPnL += profit
	p.mu.Unlock()

	return providers.SettlementResult{
		Success: true,
		Profit:  profit,
		Cost:    cost,
	}, nil
}

func (p *PaperSettlement) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

func (p *PaperSettlement) TotalPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalPnL
}
