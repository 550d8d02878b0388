package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// MarketData serves quotes from a short-lived cache backed by a REST venue
// aggregator, with optional live updates pushed in from a QuoteStream. Gas
// estimates come from the estimator when one is configured, otherwise a flat
// fallback is returned.
//
// Implements providers.MarketDataProvider.
type MarketData struct {
	http    *HTTPClient
	baseURL string
	apiKey  string

	gas         *GasEstimator
	fallbackGas float64

	mu    sync.RWMutex
	cache map[quoteKey]cachedQuote
	ttl   time.Duration
}

type quoteKey struct {
	venueID string
	asset   string
}

type cachedQuote struct {
	quote   types.Quote
	fetched time.Time
}

type quoteResponse struct {
	VenueID   string  `json:"venue_id"`
	Asset     string  `json:"asset"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
	Timestamp int64   `json:"timestamp"`
}

// NewMarketData creates a market data client. gas may be nil; fallbackGas is
// used whenever no estimator is available or it errors.
func NewMarketData(baseURL, apiKey string, gas *GasEstimator, fallbackGas float64, ttl time.Duration) *MarketData {
	return &MarketData{
		http:        NewHTTPClient(10 * time.Second),
		baseURL:     baseURL,
		apiKey:      apiKey,
		gas:         gas,
		fallbackGas: fallbackGas,
		cache:       make(map[quoteKey]cachedQuote),
		ttl:         ttl,
	}
}

func (m *MarketData) GetQuote(ctx context.Context, venueID, asset string) (types.Quote, error) {
	key := quoteKey{venueID: venueID, asset: asset}

	m.mu.RLock()
	entry, ok := m.cache[key]
	m.mu.RUnlock()
	if ok && time.Since(entry.fetched) < m.ttl {
		return entry.quote, nil
	}

	reqURL := fmt.Sprintf("%s/quotes?venue_id=%s&asset=%s",
		m.baseURL, url.QueryEscape(venueID), url.QueryEscape(asset))

	headers := map[string]string{
		"x-api-key": m.apiKey,
	}

	var resp quoteResponse
	if err := m.http.MakeJSONRequest(ctx, reqURL, headers, &resp); err != nil {
		// A stale quote beats no quote when the venue API is flapping.
		if ok {
			return entry.quote, nil
		}
		return types.Quote{}, fmt.Errorf("failed to get quote for %s at %s: %w", asset, venueID, err)
	}

	quote := types.Quote{
		VenueID:   resp.VenueID,
		Asset:     resp.Asset,
		Price:     resp.Price,
		Liquidity: resp.Liquidity,
		Timestamp: time.Unix(resp.Timestamp, 0),
	}
	m.Put(quote)
	return quote, nil
}

func (m *MarketData) GetGasEstimate(ctx context.Context) (float64, error) {
	if m.gas == nil {
		return m.fallbackGas, nil
	}
	cost, err := m.gas.Estimate(ctx)
	if err != nil {
		return m.fallbackGas, nil
	}
	return cost, nil
}

// Put inserts a quote into the cache. The websocket stream calls this for
// every update it receives.
func (m *MarketData) Put(quote types.Quote) {
	m.mu.Lock()
	m.cache[quoteKey{venueID: quote.VenueID, asset: quote.Asset}] = cachedQuote{
		quote:   quote,
		fetched: time.Now(),
	}
	m.mu.Unlock()
}
