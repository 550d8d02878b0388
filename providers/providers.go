// Package providers defines the external collaborator interfaces the engine
// consumes. Concrete implementations live in client/ and utils/dbops; tests
// substitute deterministic stubs.
package providers

import (
	"context"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// MarketDataProvider serves quotes and gas estimates. Quotes back the
// pre-flight liquidity checks, so implementations should serve the freshest
// reading they have.
type MarketDataProvider interface {
	GetQuote(ctx context.Context, venueID, asset string) (types.Quote, error)
	GetGasEstimate(ctx context.Context) (float64, error)
}

// PredictionProvider serves directional forecasts.
type PredictionProvider interface {
	Predict(ctx context.Context, asset string) (types.Prediction, error)
}

// SentimentProvider serves aggregate market-mood readings.
type SentimentProvider interface {
	Sentiment(ctx context.Context, asset string) (types.Sentiment, error)
}

// WhaleActivityProvider serves large-holder flow summaries.
type WhaleActivityProvider interface {
	Activity(ctx context.Context, asset string) (types.WhaleActivity, error)
}

// SettlementResult is what a settlement call reports back.
type SettlementResult struct {
	Success bool
	Profit  float64
	Cost    float64
}

// SettlementExecutor performs the actual trade. Side-effecting; may fail.
type SettlementExecutor interface {
	Execute(ctx context.Context, asset string, route types.RoutePath, amount float64) (SettlementResult, error)
}

// ProfitLedger is the sink for execution results and closed positions.
type ProfitLedger interface {
	RecordExecution(ctx context.Context, res types.ExecutionResult) error
	RecordClosedPosition(ctx context.Context, closed types.ClosedPosition) error
}
