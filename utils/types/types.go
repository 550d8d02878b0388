package types

import (
	"time"
)

// VenueType classifies a liquidity source.
type VenueType string

const (
	VenueDEX     VenueType = "dex"
	VenueAMM     VenueType = "amm"
	VenueLending VenueType = "lending"
	VenueCEX     VenueType = "cex"
)

// Venue is a liquidity source usable as a hop in a route.
type Venue struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Chain     string    `json:"chain"`
	Type      VenueType `json:"type"`
	RiskTier  int       `json:"risk_tier"` // 1 = safest
	FeeRate   float64   `json:"fee_rate"`  // taker fee, fraction of notional
	LatencyMs float64   `json:"latency_ms"`
	APY       float64   `json:"apy"`       // current yield for lending venues, 0-1
	Supported bool      `json:"supported"` // false once the protocol is delisted
}

// RoutePath is an ordered sequence of venues a trade passes through.
// Venues never repeat within a path.
type RoutePath struct {
	Venues []Venue
}

// Hops returns the number of venues in the path.
func (p RoutePath) Hops() int { return len(p.Venues) }

// VenueIDs returns the ordered venue ids, mostly for logging and persistence.
func (p RoutePath) VenueIDs() []string {
	ids := make([]string, len(p.Venues))
	for i, v := range p.Venues {
		ids[i] = v.ID
	}
	return ids
}

// RouteMetrics holds the accumulated cost/quality numbers for one path.
// EfficiencyScore is a pure function of the other fields plus the external
// sentiment/market signals supplied at scoring time.
type RouteMetrics struct {
	LatencyMs       float64
	Cost            float64
	Liquidity       float64
	Slippage        float64 // fraction of notional lost to price impact
	EfficiencyScore float64 // 0-1
}

// ScoredRoute pairs a path with its metrics.
type ScoredRoute struct {
	Path    RoutePath
	Metrics RouteMetrics
}

// TradeSide is the direction of a candidate trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Signals carries the externally supplied inputs to opportunity scoring.
// All confidences and scores are 0-1 fractions.
type Signals struct {
	PredictionDirection  string  // "up" or "down"
	PredictionConfidence float64
	SentimentScore       float64 // -1 bearish .. +1 bullish
	SentimentConfidence  float64
	WhaleNetFlow         float64 // signed notional flow
	WhaleConfidence      float64
}

// Opportunity is a candidate trade awaiting scoring and execution.
// Once submitted to the coordinator it must not be mutated.
type Opportunity struct {
	Asset          string
	Side           TradeSide
	Amount         float64
	ExpectedProfit float64
	EstimatedCost  float64
	Signals        Signals
	CompositeScore float64 // 0-1, set by the opportunity scorer
	Route          *ScoredRoute
}

// Key returns the execution key this opportunity contends on.
func (o Opportunity) Key() ExecutionKey {
	return ExecutionKey{Asset: o.Asset, Side: o.Side}
}

// ExecutionKey is the unit of mutual exclusion: at most one in-flight
// execution per (asset, side) pair at any time.
type ExecutionKey struct {
	Asset string
	Side  TradeSide
}

func (k ExecutionKey) String() string { return k.Asset + "/" + string(k.Side) }

// ExecutionResult is the outcome of one execution attempt. One is produced
// for every claimed opportunity, failures included.
type ExecutionResult struct {
	Key           ExecutionKey
	Success       bool
	Profit        float64
	Cost          float64
	FailureReason string
	Timestamp     time.Time
}

// ExecutionSummary aggregates one coordinator cycle.
type ExecutionSummary struct {
	Successful  int
	Failed      int
	Deferred    int // busy key or beyond the concurrency bound, retried next cycle
	TotalProfit float64
	TotalCost   float64
	Results     []ExecutionResult
}

// PositionKind distinguishes the two position flavors the lifecycle
// manager owns.
type PositionKind string

const (
	KindLeveragedShort PositionKind = "leveraged_short"
	KindYield          PositionKind = "yield"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	StatusActive           PositionStatus = "active"
	StatusLocked           PositionStatus = "locked"
	StatusRebalancePending PositionStatus = "rebalance_pending"
	StatusClosed           PositionStatus = "closed"
)

// CloseReason records why a position left the active set.
type CloseReason string

const (
	CloseStopLoss   CloseReason = "stop_loss"
	CloseTakeProfit CloseReason = "take_profit"
	CloseRebalance  CloseReason = "rebalance"
	CloseManual     CloseReason = "manual"
	CloseShutdown   CloseReason = "shutdown"
)

// RebalanceReason records which check flagged a position, in priority order:
// protocol unsupported first, then low APY, then deviation, then an adverse
// prediction. Only the first matching reason is ever recorded.
type RebalanceReason string

const (
	RebalanceProtocolUnsupported RebalanceReason = "protocol_unsupported"
	RebalanceLowAPY              RebalanceReason = "low_apy"
	RebalanceAPYDeviation        RebalanceReason = "apy_deviation"
	RebalanceAdversePrediction   RebalanceReason = "adverse_prediction"
)

// Position is an open leveraged or yield-bearing holding. It is owned
// exclusively by the lifecycle manager until closed.
type Position struct {
	ID           string
	Asset        string
	VenueID      string
	Kind         PositionKind
	Amount       float64 // > 0
	Leverage     float64 // > 0, 1 for yield positions
	EntryPrice   float64
	EntryAPY     float64 // 0-1, yield positions
	CurrentPrice float64
	CurrentAPY   float64
	StopLoss     float64 // fraction of leveraged P&L, positive
	TakeProfit   float64 // fraction of leveraged P&L, positive
	BorrowingFee float64 // annualized fraction, leveraged positions
	Status       PositionStatus
	FlagReason   RebalanceReason // set while Status == rebalance_pending
	LockedUntil  time.Time       // zero when the position never locks
	EntryTime    time.Time
	Metadata     map[string]interface{}
}

// PositionSnapshot is the per-position view handed to reporting layers.
type PositionSnapshot struct {
	ID            string         `json:"id"`
	Asset         string         `json:"asset"`
	VenueID       string         `json:"venue_id"`
	Kind          PositionKind   `json:"kind"`
	Status        PositionStatus `json:"status"`
	NetPnL        float64        `json:"net_pnl"`
	NetPnLPercent float64        `json:"net_pnl_percent"` // 0-1 fraction
}

// ClosedPosition is the terminal record produced when a position leaves the
// active set.
type ClosedPosition struct {
	Position  Position
	ExitPrice float64
	NetPnL    float64
	Reason    CloseReason
	ClosedAt  time.Time
}

// AllocationStrategy is a named risk/reward profile. Weights must sum to 1.
type AllocationStrategy struct {
	Name               string             `json:"name"`
	MaxRiskScore       float64            `json:"max_risk_score"`
	RebalanceThreshold float64            `json:"rebalance_threshold"` // max tolerated APY deviation, fraction
	Weights            map[string]float64 `json:"weights"`
}

// Quote is a point-in-time price/liquidity reading for an asset at a venue.
type Quote struct {
	VenueID   string
	Asset     string
	Price     float64
	Liquidity float64
	Timestamp time.Time
}

// Prediction is a directional forecast for an asset.
type Prediction struct {
	Asset      string
	Direction  string // "up" or "down"
	Confidence float64
}

// Sentiment is an aggregate market-mood reading for an asset.
type Sentiment struct {
	Asset      string
	Score      float64 // -1 .. +1
	Confidence float64
}

// WhaleActivity summarizes recent large-holder flow for an asset.
type WhaleActivity struct {
	Asset      string
	NetFlow    float64
	Confidence float64
}
