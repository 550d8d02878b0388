package position

import (
	"time"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// P&L math. All percentages are 0-1 fractions of entry notional.

// UnrealizedPnL is the raw price move on the position's size. Shorts profit
// when price falls; yield and long positions carry the inverted sign.
func UnrealizedPnL(p types.Position, currentPrice float64) float64 {
	if p.Kind == types.KindLeveragedShort {
		return (p.EntryPrice - currentPrice) * p.Amount
	}
	return (currentPrice - p.EntryPrice) * p.Amount
}

// LeveragedPnL scales the raw move by the position's leverage.
func LeveragedPnL(p types.Position, currentPrice float64) float64 {
	return UnrealizedPnL(p, currentPrice) * p.Leverage
}

// LeveragedPnLPercent expresses the leveraged move as a fraction of entry
// notional. Stop-loss and take-profit thresholds compare against this value.
func LeveragedPnLPercent(p types.Position, currentPrice float64) float64 {
	notional := p.EntryPrice * p.Amount
	if notional == 0 {
		return 0
	}
	return LeveragedPnL(p, currentPrice) / notional
}

// BorrowingCost accrues the annualized borrowing fee pro rata over the
// holding period. Zero elapsed time costs nothing.
func BorrowingCost(p types.Position, now time.Time) float64 {
	elapsed := now.Sub(p.EntryTime)
	if elapsed <= 0 || p.BorrowingFee == 0 {
		return 0
	}
	days := elapsed.Hours() / 24
	return p.EntryPrice * p.Amount * p.BorrowingFee * (days / 365)
}

// NetPnL is the leveraged move less borrowing cost.
func NetPnL(p types.Position, currentPrice float64, now time.Time) float64 {
	return LeveragedPnL(p, currentPrice) - BorrowingCost(p, now)
}

// NetPnLPercent expresses net P&L as a fraction of entry notional.
func NetPnLPercent(p types.Position, currentPrice float64, now time.Time) float64 {
	notional := p.EntryPrice * p.Amount
	if notional == 0 {
		return 0
	}
	return NetPnL(p, currentPrice, now) / notional
}
