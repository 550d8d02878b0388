package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// SignalsAPI provides methods for fetching prediction, sentiment and whale
// flow readings from a signals aggregator.
//
// Implements providers.PredictionProvider, providers.SentimentProvider and
// providers.WhaleActivityProvider.
type SignalsAPI struct {
	client  *HTTPClient
	baseURL string
	apiKey  string
}

// NewSignalsAPI creates a new signals API client
func NewSignalsAPI(baseURL, apiKey string) *SignalsAPI {
	return &SignalsAPI{
		client:  NewHTTPClient(30 * time.Second),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (s *SignalsAPI) headers() map[string]string {
	return map[string]string{
		"x-api-key": s.apiKey,
	}
}

type predictionResponse struct {
	Asset      string  `json:"asset"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

// Predict fetches the latest directional forecast for an asset
func (s *SignalsAPI) Predict(ctx context.Context, asset string) (types.Prediction, error) {
	reqURL := fmt.Sprintf("%s/get_prediction?asset=%s", s.baseURL, url.QueryEscape(asset))

	var resp predictionResponse
	if err := s.client.MakeJSONRequest(ctx, reqURL, s.headers(), &resp); err != nil {
		return types.Prediction{}, fmt.Errorf("failed to get prediction: %w", err)
	}

	return types.Prediction{
		Asset:      resp.Asset,
		Direction:  resp.Direction,
		Confidence: resp.Confidence,
	}, nil
}

type sentimentResponse struct {
	Asset      string  `json:"asset"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Sentiment fetches the latest aggregate market-mood reading for an asset
func (s *SignalsAPI) Sentiment(ctx context.Context, asset string) (types.Sentiment, error) {
	reqURL := fmt.Sprintf("%s/get_sentiment?asset=%s", s.baseURL, url.QueryEscape(asset))

	var resp sentimentResponse
	if err := s.client.MakeJSONRequest(ctx, reqURL, s.headers(), &resp); err != nil {
		return types.Sentiment{}, fmt.Errorf("failed to get sentiment: %w", err)
	}

	return types.Sentiment{
		Asset:      resp.Asset,
		Score:      resp.Score,
		Confidence: resp.Confidence,
	}, nil
}

type whaleFlowResponse struct {
	Asset      string  `json:"asset"`
	NetFlow    float64 `json:"net_flow"`
	Confidence float64 `json:"confidence"`
}

// Activity fetches recent large-holder net flow for an asset
func (s *SignalsAPI) Activity(ctx context.Context, asset string) (types.WhaleActivity, error) {
	reqURL := fmt.Sprintf("%s/get_whale_flow?asset=%s", s.baseURL, url.QueryEscape(asset))

	var resp whaleFlowResponse
	if err := s.client.MakeJSONRequest(ctx, reqURL, s.headers(), &resp); err != nil {
		return types.WhaleActivity{}, fmt.Errorf("failed to get whale flow: %w", err)
	}

	return types.WhaleActivity{
		Asset:      resp.Asset,
		NetFlow:    resp.NetFlow,
		Confidence: resp.Confidence,
	}, nil
}
