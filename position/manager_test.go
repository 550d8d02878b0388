package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

type tickMarket struct {
	prices map[string]float64 // keyed by venue id
}

func (m *tickMarket) GetQuote(_ context.Context, venueID, asset string) (types.Quote, error) {
	price, ok := m.prices[venueID]
	if !ok {
		return types.Quote{}, errors.New("no quote")
	}
	return types.Quote{VenueID: venueID, Asset: asset, Price: price, Liquidity: 1_000_000}, nil
}

func (m *tickMarket) GetGasEstimate(context.Context) (float64, error) { return 2, nil }

type tickPrediction struct {
	p   types.Prediction
	err error
}

func (s *tickPrediction) Predict(context.Context, string) (types.Prediction, error) {
	return s.p, s.err
}

type closeLedger struct {
	closed []types.ClosedPosition
}

func (l *closeLedger) RecordExecution(context.Context, types.ExecutionResult) error { return nil }

func (l *closeLedger) RecordClosedPosition(_ context.Context, c types.ClosedPosition) error {
	l.closed = append(l.closed, c)
	return nil
}

type fixture struct {
	m          *Manager
	market     *tickMarket
	prediction *tickPrediction
	ledger     *closeLedger
	clock      time.Time
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.DefaultStopLoss == 0 {
		cfg.DefaultStopLoss = 0.10
	}
	if cfg.DefaultTakeProfit == 0 {
		cfg.DefaultTakeProfit = 0.20
	}
	if cfg.MinAPY == 0 {
		cfg.MinAPY = 0.02
	}
	if cfg.SupportedAssets == nil {
		cfg.SupportedAssets = []string{"ETH", "SOL"}
	}

	venues := []types.Venue{
		{ID: "alpha", RiskTier: 1, APY: 0.05, Supported: true},
		{ID: "beta", RiskTier: 2, APY: 0.06, Supported: true},
		{ID: "gamma", RiskTier: 1, APY: 0.10, Supported: true},
	}

	f := &fixture{
		market:     &tickMarket{prices: map[string]float64{"alpha": 100, "beta": 100, "gamma": 100}},
		prediction: &tickPrediction{err: errors.New("no forecast")},
		ledger:     &closeLedger{},
		clock:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	strategy := types.AllocationStrategy{Name: "test", RebalanceThreshold: 0.20}
	f.m = NewManager(f.market, f.prediction, f.ledger, strategy, venues, cfg)
	f.m.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) openShort(t *testing.T, entry float64) types.Position {
	t.Helper()
	pos, err := f.m.Open(context.Background(), OpenParams{
		Asset:      "ETH",
		VenueID:    "alpha",
		Kind:       types.KindLeveragedShort,
		Amount:     10,
		Leverage:   3,
		EntryPrice: entry,
	})
	require.NoError(t, err)
	return pos
}

func (f *fixture) openYield(t *testing.T) types.Position {
	t.Helper()
	pos, err := f.m.Open(context.Background(), OpenParams{
		Asset:      "ETH",
		VenueID:    "alpha",
		Kind:       types.KindYield,
		Amount:     10,
		EntryPrice: 100,
		EntryAPY:   0.05,
	})
	require.NoError(t, err)
	return pos
}

func TestOpenValidation(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name   string
		params OpenParams
	}{
		{"zero amount", OpenParams{Asset: "ETH", VenueID: "alpha", Kind: types.KindLeveragedShort, Amount: 0, Leverage: 3, EntryPrice: 100}},
		{"negative amount", OpenParams{Asset: "ETH", VenueID: "alpha", Kind: types.KindLeveragedShort, Amount: -5, Leverage: 3, EntryPrice: 100}},
		{"zero leverage short", OpenParams{Asset: "ETH", VenueID: "alpha", Kind: types.KindLeveragedShort, Amount: 10, Leverage: 0, EntryPrice: 100}},
		{"unsupported asset", OpenParams{Asset: "DOGE", VenueID: "alpha", Kind: types.KindLeveragedShort, Amount: 10, Leverage: 3, EntryPrice: 100}},
		{"unknown venue", OpenParams{Asset: "ETH", VenueID: "nowhere", Kind: types.KindLeveragedShort, Amount: 10, Leverage: 3, EntryPrice: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.m.Open(ctx, tt.params)
			assert.True(t, errors.Is(err, types.ErrInvalidParameters))
		})
	}
	assert.Equal(t, 0, f.m.ActiveCount())
}

func TestOpenYieldForcesUnitLeverage(t *testing.T) {
	f := newFixture(t, Config{})
	pos, err := f.m.Open(context.Background(), OpenParams{
		Asset:      "ETH",
		VenueID:    "alpha",
		Kind:       types.KindYield,
		Amount:     10,
		Leverage:   5, // ignored for yield
		EntryPrice: 100,
		EntryAPY:   0.05,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pos.Leverage, 1e-9)
}

func TestOpenAppliesDefaults(t *testing.T) {
	f := newFixture(t, Config{DefaultStopLoss: 0.08, DefaultTakeProfit: 0.25})
	pos := f.openShort(t, 100)
	assert.InDelta(t, 0.08, pos.StopLoss, 1e-9)
	assert.InDelta(t, 0.25, pos.TakeProfit, 1e-9)
	assert.Equal(t, types.StatusActive, pos.Status)
	assert.InDelta(t, 100.0, pos.CurrentPrice, 1e-9)
}

func TestOpenYieldStartsLocked(t *testing.T) {
	f := newFixture(t, Config{LockPeriod: 24 * time.Hour})

	yield := f.openYield(t)
	assert.Equal(t, types.StatusLocked, yield.Status)
	assert.Equal(t, f.clock.Add(24*time.Hour), yield.LockedUntil)

	// Shorts never lock.
	short := f.openShort(t, 100)
	assert.Equal(t, types.StatusActive, short.Status)
	assert.True(t, short.LockedUntil.IsZero())
}

func TestMonitorTickStopLoss(t *testing.T) {
	f := newFixture(t, Config{})
	pos := f.openShort(t, 100)

	// 3x short: price up 4% is a -12% leveraged move, through the -10% stop.
	f.market.prices["alpha"] = 104
	snaps := f.m.MonitorTick(context.Background())

	assert.Empty(t, snaps)
	assert.Equal(t, 0, f.m.ActiveCount())

	history := f.m.History()
	require.Len(t, history, 1)
	assert.Equal(t, pos.ID, history[0].Position.ID)
	assert.Equal(t, types.CloseStopLoss, history[0].Reason)
	assert.InDelta(t, 104.0, history[0].ExitPrice, 1e-9)
	assert.InDelta(t, -120.0, history[0].NetPnL, 1e-9)

	require.Len(t, f.ledger.closed, 1)
	assert.Equal(t, types.CloseStopLoss, f.ledger.closed[0].Reason)
}

func TestMonitorTickTakeProfit(t *testing.T) {
	f := newFixture(t, Config{})
	f.openShort(t, 100)

	// 3x short: price down 7% is a +21% leveraged move, through the 20% target.
	f.market.prices["alpha"] = 93
	f.m.MonitorTick(context.Background())

	history := f.m.History()
	require.Len(t, history, 1)
	assert.Equal(t, types.CloseTakeProfit, history[0].Reason)
}

func TestMonitorTickStopLossWinsWhenThresholdsOverlap(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.m.Open(context.Background(), OpenParams{
		Asset:      "ETH",
		VenueID:    "alpha",
		Kind:       types.KindLeveragedShort,
		Amount:     10,
		Leverage:   3,
		EntryPrice: 100,
		StopLoss:   -0.05, // misconfigured: overlaps the take-profit band
		TakeProfit: 0.05,
	})
	require.NoError(t, err)

	// +6% leveraged move satisfies both thresholds; stop-loss is checked first.
	f.market.prices["alpha"] = 98
	f.m.MonitorTick(context.Background())

	history := f.m.History()
	require.Len(t, history, 1)
	assert.Equal(t, types.CloseStopLoss, history[0].Reason)
}

func TestMonitorTickHoldsWithinThresholds(t *testing.T) {
	f := newFixture(t, Config{})
	pos := f.openShort(t, 100)

	f.market.prices["alpha"] = 101
	snaps := f.m.MonitorTick(context.Background())

	require.Len(t, snaps, 1)
	assert.Equal(t, pos.ID, snaps[0].ID)
	assert.Equal(t, types.StatusActive, snaps[0].Status)
	assert.Equal(t, 1, f.m.ActiveCount())
}

func TestRebalanceFlagPriority(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
		want   types.RebalanceReason
	}{
		{
			"unsupported venue outranks everything",
			func(f *fixture) {
				// Also below MinAPY, but protocol support is checked first.
				f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.01, Supported: false})
			},
			types.RebalanceProtocolUnsupported,
		},
		{
			"low apy outranks deviation",
			func(f *fixture) {
				// 0.01 is both under MinAPY and an 80% deviation from entry.
				f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.01, Supported: true})
			},
			types.RebalanceLowAPY,
		},
		{
			"apy deviation",
			func(f *fixture) {
				// 0.03 clears MinAPY but deviates 40% from the 0.05 entry.
				f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.03, Supported: true})
			},
			types.RebalanceAPYDeviation,
		},
		{
			"adverse prediction",
			func(f *fixture) {
				f.prediction.err = nil
				f.prediction.p = types.Prediction{Direction: "down", Confidence: 0.8}
			},
			types.RebalanceAdversePrediction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.openYield(t)
			tt.mutate(f)

			snaps := f.m.MonitorTick(context.Background())
			require.Len(t, snaps, 1)
			assert.Equal(t, types.StatusRebalancePending, snaps[0].Status)

			f.m.mu.Lock()
			for _, pos := range f.m.positions {
				assert.Equal(t, tt.want, pos.FlagReason)
			}
			f.m.mu.Unlock()
		})
	}
}

func TestRebalanceFlagIgnoresWeakOrFavorablePredictions(t *testing.T) {
	tests := []struct {
		name string
		kind types.PositionKind
		p    types.Prediction
	}{
		{"confidence at the floor", types.KindYield, types.Prediction{Direction: "down", Confidence: 0.7}},
		{"favorable for yield", types.KindYield, types.Prediction{Direction: "up", Confidence: 0.9}},
		{"favorable for short", types.KindLeveragedShort, types.Prediction{Direction: "down", Confidence: 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.prediction.err = nil
			f.prediction.p = tt.p
			if tt.kind == types.KindYield {
				f.openYield(t)
			} else {
				f.openShort(t, 100)
			}

			snaps := f.m.MonitorTick(context.Background())
			require.Len(t, snaps, 1)
			assert.Equal(t, types.StatusActive, snaps[0].Status)
		})
	}
}

func TestRebalanceFlagClearsWhenConditionResolves(t *testing.T) {
	f := newFixture(t, Config{})
	f.openYield(t)

	f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.05, Supported: false})
	snaps := f.m.MonitorTick(context.Background())
	require.Len(t, snaps, 1)
	require.Equal(t, types.StatusRebalancePending, snaps[0].Status)

	// Support restored: the flag must clear on the next tick.
	f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.05, Supported: true})
	snaps = f.m.MonitorTick(context.Background())
	require.Len(t, snaps, 1)
	assert.Equal(t, types.StatusActive, snaps[0].Status)
}

func TestLockedPositionSkipsThresholdChecks(t *testing.T) {
	f := newFixture(t, Config{LockPeriod: 24 * time.Hour})
	pos := f.openYield(t)

	// Catastrophic drop while locked: position must stay open.
	f.market.prices["alpha"] = 10
	snaps := f.m.MonitorTick(context.Background())
	require.Len(t, snaps, 1)
	assert.Equal(t, types.StatusLocked, snaps[0].Status)
	assert.Equal(t, 1, f.m.ActiveCount())

	// Lock expires: the same drop now trips the stop-loss.
	f.advance(25 * time.Hour)
	snaps = f.m.MonitorTick(context.Background())
	assert.Empty(t, snaps)
	history := f.m.History()
	require.Len(t, history, 1)
	assert.Equal(t, pos.ID, history[0].Position.ID)
	assert.Equal(t, types.CloseStopLoss, history[0].Reason)
}

func TestCloseRejectsLockedBeforeExpiry(t *testing.T) {
	f := newFixture(t, Config{LockPeriod: 24 * time.Hour})
	pos := f.openYield(t)

	_, err := f.m.Close(context.Background(), pos.ID, 105, types.CloseManual)
	assert.True(t, errors.Is(err, types.ErrInvalidParameters))
	assert.Equal(t, 1, f.m.ActiveCount())

	f.advance(25 * time.Hour)
	closed, err := f.m.Close(context.Background(), pos.ID, 105, types.CloseManual)
	require.NoError(t, err)
	assert.Equal(t, types.CloseManual, closed.Reason)
	assert.InDelta(t, 105.0, closed.ExitPrice, 1e-9)
	assert.Equal(t, 0, f.m.ActiveCount())
}

func TestCloseUnknownPosition(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.m.Close(context.Background(), "missing", 100, types.CloseManual)
	assert.True(t, errors.Is(err, types.ErrPositionNotFound))
}

func TestCloseAllForcesLocks(t *testing.T) {
	f := newFixture(t, Config{LockPeriod: 24 * time.Hour})
	f.openYield(t)
	f.openShort(t, 100)

	closed := f.m.CloseAll(context.Background(), types.CloseShutdown)
	require.Len(t, closed, 2)
	for _, c := range closed {
		assert.Equal(t, types.CloseShutdown, c.Reason)
	}
	assert.Equal(t, 0, f.m.ActiveCount())
	assert.Len(t, f.ledger.closed, 2)
}

func TestRebalanceMovesToBetterVenue(t *testing.T) {
	f := newFixture(t, Config{})
	old := f.openYield(t)

	// Delisting alpha flags the position; gamma (same tier, 0.10 APY) clears
	// the 1.1x improvement floor over the current 0.05.
	f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.05, Supported: false})
	f.m.MonitorTick(context.Background())

	opened := f.m.Rebalance(context.Background())
	require.Len(t, opened, 1)
	assert.Equal(t, "gamma", opened[0].VenueID)
	assert.Equal(t, old.Asset, opened[0].Asset)
	assert.InDelta(t, old.Amount, opened[0].Amount, 1e-9)
	assert.InDelta(t, 0.10, opened[0].EntryAPY, 1e-9)
	assert.InDelta(t, 100.0, opened[0].EntryPrice, 1e-9)
	assert.NotEqual(t, old.ID, opened[0].ID)

	history := f.m.History()
	require.Len(t, history, 1)
	assert.Equal(t, old.ID, history[0].Position.ID)
	assert.Equal(t, types.CloseRebalance, history[0].Reason)

	assert.Equal(t, 1, f.m.ActiveCount())
}

func TestRebalanceRespectsTierBound(t *testing.T) {
	f := newFixture(t, Config{})
	f.openYield(t)

	// A tier-3 venue with a huge APY must never be picked from tier 1.
	f.m.UpdateVenue(types.Venue{ID: "delta", RiskTier: 3, APY: 0.50, Supported: true})
	f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.05, Supported: false})
	f.m.MonitorTick(context.Background())

	opened := f.m.Rebalance(context.Background())
	require.Len(t, opened, 1)
	assert.Equal(t, "gamma", opened[0].VenueID)
}

func TestRebalanceStaysFlaggedWithoutAlternative(t *testing.T) {
	f := newFixture(t, Config{})
	f.openYield(t)

	// No venue clears the improvement floor once the good ones are delisted.
	f.m.UpdateVenue(types.Venue{ID: "alpha", RiskTier: 1, APY: 0.05, Supported: false})
	f.m.UpdateVenue(types.Venue{ID: "beta", RiskTier: 2, APY: 0.06, Supported: false})
	f.m.UpdateVenue(types.Venue{ID: "gamma", RiskTier: 1, APY: 0.10, Supported: false})
	f.m.MonitorTick(context.Background())

	opened := f.m.Rebalance(context.Background())
	assert.Empty(t, opened)
	assert.Equal(t, 1, f.m.ActiveCount())

	snaps := f.m.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, types.StatusRebalancePending, snaps[0].Status)
}

func TestSnapshotsAreReadOnlyAndOrdered(t *testing.T) {
	f := newFixture(t, Config{})
	f.openShort(t, 100)
	f.openShort(t, 100)
	f.openYield(t)

	snaps := f.m.Snapshots()
	require.Len(t, snaps, 3)
	for i := 1; i < len(snaps); i++ {
		assert.Less(t, snaps[i-1].ID, snaps[i].ID)
	}
	assert.Equal(t, 3, f.m.ActiveCount())
}
