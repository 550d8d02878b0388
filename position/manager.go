// Package position owns the full lifecycle of open positions: open, monitor,
// rebalance-or-close. Leveraged shorts and yield positions share the same
// state machine.
package position

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OldEphraim/defi-trade-engine/providers"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// adversePredictionConfidence is the floor above which an adverse forecast
// flags a position for rebalancing.
const adversePredictionConfidence = 0.7

// minAPYImprovement is the factor a replacement venue's APY must clear over
// the flagged position's current APY.
const minAPYImprovement = 1.1

// Config tunes the lifecycle manager.
type Config struct {
	DefaultStopLoss   float64       // fraction, used when OpenParams leaves it zero
	DefaultTakeProfit float64       // fraction
	MinAPY            float64       // yield below this flags low_apy
	LockPeriod        time.Duration // mandatory holding period for yield positions
	SupportedAssets   []string
}

// OpenParams describes a position to open.
type OpenParams struct {
	Asset        string
	VenueID      string
	Kind         types.PositionKind
	Amount       float64
	Leverage     float64 // ignored for yield positions, which always carry 1
	EntryPrice   float64
	EntryAPY     float64
	StopLoss     float64
	TakeProfit   float64
	BorrowingFee float64
}

// Manager is the exclusive owner of the active position set. Every mutation
// happens under its lock; callers only ever see snapshots and closed records.
type Manager struct {
	market     providers.MarketDataProvider
	prediction providers.PredictionProvider
	ledger     providers.ProfitLedger
	strategy   types.AllocationStrategy
	cfg        Config

	mu        sync.Mutex
	positions map[string]*types.Position
	venues    map[string]types.Venue
	history   []types.ClosedPosition
	supported map[string]bool

	now func() time.Time
}

// NewManager creates a lifecycle manager. venues is the configured venue
// universe; ledger may be nil when closes should not be persisted.
func NewManager(market providers.MarketDataProvider, prediction providers.PredictionProvider, ledger providers.ProfitLedger, strategy types.AllocationStrategy, venues []types.Venue, cfg Config) *Manager {
	supported := make(map[string]bool, len(cfg.SupportedAssets))
	for _, a := range cfg.SupportedAssets {
		supported[a] = true
	}
	byID := make(map[string]types.Venue, len(venues))
	for _, v := range venues {
		byID[v.ID] = v
	}
	return &Manager{
		market:     market,
		prediction: prediction,
		ledger:     ledger,
		strategy:   strategy,
		cfg:        cfg,
		positions:  make(map[string]*types.Position),
		venues:     byID,
		supported:  supported,
		now:        time.Now,
	}
}

// Open validates parameters and adds a new position to the active set.
// Yield positions with a configured lock period start locked.
func (m *Manager) Open(ctx context.Context, params OpenParams) (types.Position, error) {
	if params.Amount <= 0 {
		return types.Position{}, fmt.Errorf("%w: amount must be positive, got %f", types.ErrInvalidParameters, params.Amount)
	}
	if params.Kind == types.KindYield {
		params.Leverage = 1
	}
	if params.Leverage <= 0 {
		return types.Position{}, fmt.Errorf("%w: leverage must be positive, got %f", types.ErrInvalidParameters, params.Leverage)
	}
	if !m.supported[params.Asset] {
		return types.Position{}, fmt.Errorf("%w: unsupported asset %q", types.ErrInvalidParameters, params.Asset)
	}

	if params.StopLoss == 0 {
		params.StopLoss = m.cfg.DefaultStopLoss
	}
	if params.TakeProfit == 0 {
		params.TakeProfit = m.cfg.DefaultTakeProfit
	}

	now := m.now()
	pos := types.Position{
		ID:           uuid.NewString(),
		Asset:        params.Asset,
		VenueID:      params.VenueID,
		Kind:         params.Kind,
		Amount:       params.Amount,
		Leverage:     params.Leverage,
		EntryPrice:   params.EntryPrice,
		EntryAPY:     params.EntryAPY,
		CurrentPrice: params.EntryPrice,
		CurrentAPY:   params.EntryAPY,
		StopLoss:     params.StopLoss,
		TakeProfit:   params.TakeProfit,
		BorrowingFee: params.BorrowingFee,
		Status:       types.StatusActive,
		EntryTime:    now,
	}
	if params.Kind == types.KindYield && m.cfg.LockPeriod > 0 {
		pos.Status = types.StatusLocked
		pos.LockedUntil = now.Add(m.cfg.LockPeriod)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.venues[params.VenueID]; !ok {
		return types.Position{}, fmt.Errorf("%w: unknown venue %q", types.ErrInvalidParameters, params.VenueID)
	}
	m.positions[pos.ID] = &pos

	return pos, nil
}

// MonitorTick re-evaluates every active position: refresh the quote, expire
// locks, check stop-loss then take-profit, then run the rebalance checks in
// fixed priority order. It returns a snapshot per position still owned after
// the tick, ordered by id for deterministic output.
func (m *Manager) MonitorTick(ctx context.Context) []types.PositionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	snapshots := make([]types.PositionSnapshot, 0, len(m.positions))

	for _, pos := range m.sortedLocked() {
		if quote, err := m.market.GetQuote(ctx, pos.VenueID, pos.Asset); err == nil && quote.Price > 0 {
			pos.CurrentPrice = quote.Price
		}
		if v, ok := m.venueFor(pos.VenueID); ok {
			pos.CurrentAPY = v.APY
		}

		if pos.Status == types.StatusLocked {
			if now.Before(pos.LockedUntil) {
				snapshots = append(snapshots, m.snapshotLocked(pos, now))
				continue
			}
			pos.Status = types.StatusActive
		}

		// Stop-loss first: deterministic even if thresholds were
		// misconfigured to overlap.
		lpct := LeveragedPnLPercent(*pos, pos.CurrentPrice)
		if lpct <= -pos.StopLoss {
			m.closeLocked(ctx, pos, pos.CurrentPrice, types.CloseStopLoss, now)
			continue
		}
		if lpct >= pos.TakeProfit {
			m.closeLocked(ctx, pos, pos.CurrentPrice, types.CloseTakeProfit, now)
			continue
		}

		if reason, flagged := m.rebalanceReason(ctx, pos); flagged {
			pos.Status = types.StatusRebalancePending
			pos.FlagReason = reason
		} else if pos.Status == types.StatusRebalancePending {
			pos.Status = types.StatusActive
			pos.FlagReason = ""
		}

		snapshots = append(snapshots, m.snapshotLocked(pos, now))
	}

	return snapshots
}

// rebalanceReason evaluates the flag conditions in fixed priority order and
// returns only the first match.
func (m *Manager) rebalanceReason(ctx context.Context, pos *types.Position) (types.RebalanceReason, bool) {
	venue, ok := m.venueFor(pos.VenueID)
	if !ok || !venue.Supported {
		return types.RebalanceProtocolUnsupported, true
	}

	if pos.Kind == types.KindYield && pos.CurrentAPY < m.cfg.MinAPY {
		return types.RebalanceLowAPY, true
	}

	if pos.Kind == types.KindYield && pos.EntryAPY > 0 {
		deviation := pos.EntryAPY - pos.CurrentAPY
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation/pos.EntryAPY > m.strategy.RebalanceThreshold {
			return types.RebalanceAPYDeviation, true
		}
	}

	if m.prediction != nil {
		if p, err := m.prediction.Predict(ctx, pos.Asset); err == nil && p.Confidence > adversePredictionConfidence {
			adverse := (pos.Kind == types.KindLeveragedShort && p.Direction == "up") ||
				(pos.Kind != types.KindLeveragedShort && p.Direction == "down")
			if adverse {
				return types.RebalanceAdversePrediction, true
			}
		}
	}

	return "", false
}

// Rebalance closes every flagged position and opens a replacement on the
// best compatible alternative venue: same risk tier within one level, APY at
// least 10% above the current one. Both legs are recorded. Positions with no
// compatible alternative stay flagged for the next pass.
func (m *Manager) Rebalance(ctx context.Context) []types.Position {
	m.mu.Lock()
	flagged := make([]*types.Position, 0)
	for _, pos := range m.sortedLocked() {
		if pos.Status == types.StatusRebalancePending {
			flagged = append(flagged, pos)
		}
	}
	m.mu.Unlock()

	var opened []types.Position
	for _, pos := range flagged {
		replacement, ok := m.pickAlternative(*pos)
		if !ok {
			continue
		}

		m.mu.Lock()
		if _, still := m.positions[pos.ID]; !still {
			m.mu.Unlock()
			continue
		}
		now := m.now()
		m.closeLocked(ctx, pos, pos.CurrentPrice, types.CloseRebalance, now)
		m.mu.Unlock()

		newPos, err := m.Open(ctx, OpenParams{
			Asset:        pos.Asset,
			VenueID:      replacement.ID,
			Kind:         pos.Kind,
			Amount:       pos.Amount,
			Leverage:     pos.Leverage,
			EntryPrice:   pos.CurrentPrice,
			EntryAPY:     replacement.APY,
			StopLoss:     pos.StopLoss,
			TakeProfit:   pos.TakeProfit,
			BorrowingFee: pos.BorrowingFee,
		})
		if err != nil {
			continue
		}
		opened = append(opened, newPos)
	}
	return opened
}

// pickAlternative selects the supported venue with the highest APY whose
// risk tier is within one level of the current venue and whose APY clears
// the improvement floor.
func (m *Manager) pickAlternative(pos types.Position) (types.Venue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.venues[pos.VenueID]
	if !ok {
		return types.Venue{}, false
	}

	best := types.Venue{}
	found := false
	for _, id := range m.sortedVenueIDsLocked() {
		v := m.venues[id]
		if v.ID == pos.VenueID || !v.Supported {
			continue
		}
		tierDiff := v.RiskTier - current.RiskTier
		if tierDiff < -1 || tierDiff > 1 {
			continue
		}
		if v.APY < pos.CurrentAPY*minAPYImprovement {
			continue
		}
		if !found || v.APY > best.APY {
			best = v
			found = true
		}
	}
	return best, found
}

// Close closes a position by id at the given price. Locked positions cannot
// be closed before their lock expires.
func (m *Manager) Close(ctx context.Context, id string, exitPrice float64, reason types.CloseReason) (types.ClosedPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return types.ClosedPosition{}, fmt.Errorf("%w: %s", types.ErrPositionNotFound, id)
	}
	now := m.now()
	if pos.Status == types.StatusLocked && now.Before(pos.LockedUntil) {
		return types.ClosedPosition{}, fmt.Errorf("%w: position %s locked until %s", types.ErrInvalidParameters, id, pos.LockedUntil.Format(time.RFC3339))
	}

	m.closeLocked(ctx, pos, exitPrice, reason, now)
	return m.history[len(m.history)-1], nil
}

// closeLocked converts the position to a terminal record, hands it to the
// ledger and removes it from the active set. Callers hold m.mu.
func (m *Manager) closeLocked(ctx context.Context, pos *types.Position, exitPrice float64, reason types.CloseReason, now time.Time) {
	closed := types.ClosedPosition{
		Position:  *pos,
		ExitPrice: exitPrice,
		NetPnL:    NetPnL(*pos, exitPrice, now),
		Reason:    reason,
		ClosedAt:  now,
	}
	closed.Position.Status = types.StatusClosed
	m.history = append(m.history, closed)
	delete(m.positions, pos.ID)

	if m.ledger != nil {
		_ = m.ledger.RecordClosedPosition(ctx, closed)
	}
}

// CloseAll force-closes every owned position, lock state included. Used on
// shutdown.
func (m *Manager) CloseAll(ctx context.Context, reason types.CloseReason) []types.ClosedPosition {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var closed []types.ClosedPosition
	for _, pos := range m.sortedLocked() {
		m.closeLocked(ctx, pos, pos.CurrentPrice, reason, now)
		closed = append(closed, m.history[len(m.history)-1])
	}
	return closed
}

// UpdateVenue replaces a venue's registry entry. The monitoring tick reads
// APY and support status from here.
func (m *Manager) UpdateVenue(v types.Venue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.venues[v.ID] = v
}

// Snapshots returns the current view of every owned position without
// mutating any state, ordered by id.
func (m *Manager) Snapshots() []types.PositionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]types.PositionSnapshot, 0, len(m.positions))
	for _, pos := range m.sortedLocked() {
		out = append(out, m.snapshotLocked(pos, now))
	}
	return out
}

// ActiveCount returns the number of positions not yet closed.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// History returns the closed-position records accumulated so far.
func (m *Manager) History() []types.ClosedPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ClosedPosition, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) snapshotLocked(pos *types.Position, now time.Time) types.PositionSnapshot {
	return types.PositionSnapshot{
		ID:            pos.ID,
		Asset:         pos.Asset,
		VenueID:       pos.VenueID,
		Kind:          pos.Kind,
		Status:        pos.Status,
		NetPnL:        NetPnL(*pos, pos.CurrentPrice, now),
		NetPnLPercent: NetPnLPercent(*pos, pos.CurrentPrice, now),
	}
}

func (m *Manager) sortedLocked() []*types.Position {
	out := make([]*types.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) sortedVenueIDsLocked() []string {
	ids := make([]string, 0, len(m.venues))
	for id := range m.venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) venueFor(id string) (types.Venue, bool) {
	v, ok := m.venues[id]
	return v, ok
}
