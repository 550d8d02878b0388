package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/OldEphraim/defi-trade-engine/client"
	"github.com/OldEphraim/defi-trade-engine/db"
	"github.com/OldEphraim/defi-trade-engine/executor"
	"github.com/OldEphraim/defi-trade-engine/position"
	"github.com/OldEphraim/defi-trade-engine/providers"
	"github.com/OldEphraim/defi-trade-engine/routing"
	"github.com/OldEphraim/defi-trade-engine/scoring"
	"github.com/OldEphraim/defi-trade-engine/utils/config"
	"github.com/OldEphraim/defi-trade-engine/utils/dbops"
	"github.com/OldEphraim/defi-trade-engine/utils/logging"
	"github.com/OldEphraim/defi-trade-engine/utils/scheduler"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

type Engine struct {
	cfg        *config.EngineConfig
	logger     *logging.EngineLogger
	perf       *logging.PerformanceTracker
	store      *db.Store
	sessionID  int32
	market     *client.MarketData
	settlement *client.PaperSettlement
	signals    *client.SignalsAPI

	routeScorer *routing.Scorer
	oppScorer   *scoring.Scorer
	coordinator *executor.Coordinator
	positions   *position.Manager

	venues    []types.Venue
	tradeSize float64
}

func main() {
	configFile := flag.String("config", "engine.json", "Engine configuration file")
	venuesFile := flag.String("venues", "venues.json", "Venue universe file")
	strategiesFile := flag.String("strategies", "strategies.json", "Allocation strategies file")
	strategyName := flag.String("strategy", "", "Allocation strategy to use (default: first)")
	logLevel := flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	godotenv.Load()

	loader := config.NewLoader()
	cfg, err := loader.LoadEngineConfig(*configFile)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	loader.LoadFromEnv(cfg)

	venues, err := loader.LoadVenues(*venuesFile)
	if err != nil {
		log.Fatal("Failed to load venues: ", err)
	}

	strategies, err := loader.LoadStrategies(*strategiesFile)
	if err != nil {
		log.Fatal("Failed to load strategies: ", err)
	}
	strategy, err := pickStrategy(strategies, *strategyName)
	if err != nil {
		log.Fatal(err)
	}

	duration, err := cfg.GetDuration()
	if err != nil {
		log.Fatal("Invalid duration in config: ", err)
	}

	log.Printf("=== STARTING TRADE ENGINE ===")
	log.Printf("Configuration: %s", *configFile)
	if cfg.IsInfinite() {
		log.Printf("Duration: INFINITE (manual stop required)")
	} else {
		log.Printf("Duration: %v", duration)
	}
	log.Printf("Initial Balance: $%.2f", cfg.InitialBalance)
	log.Printf("Venues: %d, Strategy: %s", len(venues), strategy.Name)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if !cfg.IsInfinite() {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	level := logging.INFO
	switch *logLevel {
	case "DEBUG":
		level = logging.DEBUG
	case "WARN":
		level = logging.WARN
	case "ERROR":
		level = logging.ERROR
	}

	engine, err := NewEngine(ctx, cfg, strategy, venues, level)
	if err != nil {
		log.Fatal(err)
	}

	engine.Run(ctx)
}

func pickStrategy(strategies []types.AllocationStrategy, name string) (types.AllocationStrategy, error) {
	if len(strategies) == 0 {
		return types.AllocationStrategy{}, fmt.Errorf("no allocation strategies configured")
	}
	if name == "" {
		return strategies[0], nil
	}
	for _, s := range strategies {
		if s.Name == name {
			return s, nil
		}
	}
	return types.AllocationStrategy{}, fmt.Errorf("unknown strategy %q", name)
}

func NewEngine(ctx context.Context, cfg *config.EngineConfig, strategy types.AllocationStrategy, venues []types.Venue, level logging.LogLevel) (*Engine, error) {
	logger, err := logging.NewEngineLoggerWithLevel(cfg.Name, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("=== INITIALIZING ENGINE ===")

	store, err := db.NewStore(dbops.GetDBConnection())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connected")

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	strategyID, sessionID, err := dbops.InitializeStrategy(ctx, store, dbops.StrategyConfig{
		Name:           cfg.Name,
		Config:         cfgJSON,
		InitialBalance: cfg.InitialBalance,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Strategy %d, Session %d created", strategyID, sessionID)

	ledger := dbops.NewStoreLedger(store, sessionID)

	var gas *client.GasEstimator
	if rpcURL := os.Getenv("ETH_RPC_URL"); rpcURL != "" && !cfg.TestMode {
		gas, err = client.NewGasEstimator(rpcURL, 150_000, envFloat("ETH_PRICE", 2500))
		if err != nil {
			logger.Warn("Gas estimator unavailable, using fallback: %v", err)
			gas = nil
		}
	}

	market := client.NewMarketData(
		envDefault("MARKET_DATA_URL", "https://api.defi-aggregator.example"),
		os.Getenv("MARKET_DATA_API_KEY"),
		gas,
		envFloat("FALLBACK_GAS_COST", 2.0),
		5*time.Second,
	)

	if feedURL := os.Getenv("QUOTE_FEED_URL"); feedURL != "" {
		stream, err := client.NewQuoteStream(feedURL, market)
		if err != nil {
			logger.Warn("Quote feed unavailable, REST only: %v", err)
		} else {
			go stream.Listen(ctx)
			for _, v := range venues {
				for _, asset := range cfg.SupportedAssets {
					if _, err := stream.Subscribe(v.ID, asset); err != nil {
						logger.Warn("Subscribe %s/%s failed: %v", v.ID, asset, err)
					}
				}
			}
			logger.Info("Quote feed connected")
		}
	}

	signals := client.NewSignalsAPI(
		envDefault("SIGNALS_URL", "https://signals.defi-aggregator.example"),
		os.Getenv("SIGNALS_API_KEY"),
	)

	settlement := client.NewPaperSettlement(market, cfg.InitialBalance)

	routeScorer := routing.NewScorer(market, routing.Config{
		MinLiquidity: cfg.MinLiquidity,
		MaxSlippage:  cfg.MaxSlippage,
	})

	oppScorer := scoring.NewScorer(signals, signals, signals, cfg.ProfitRef)

	coordinator, err := executor.NewCoordinator(market, settlement, ledger, executor.NewKeyLock(), executor.Config{
		MaxConcurrentExecutions: cfg.MaxConcurrentExecutions,
		MinProfitThreshold:      cfg.MinProfitThreshold,
	})
	if err != nil {
		return nil, err
	}

	positions := position.NewManager(market, signals, ledger, strategy, venues, position.Config{
		DefaultStopLoss:   cfg.StopLoss,
		DefaultTakeProfit: cfg.TakeProfit,
		MinAPY:            cfg.MinAPY,
		LockPeriod:        config.ParseInterval(cfg.LockPeriod, 0),
		SupportedAssets:   cfg.SupportedAssets,
	})

	logger.Info("=== CONFIGURATION ===")
	logger.Info("  Max Concurrent Executions: %d", cfg.MaxConcurrentExecutions)
	logger.Info("  Min Profit Threshold: %.2f%%", cfg.MinProfitThreshold*100)
	logger.Info("  Max Hops: %d", cfg.MaxHops)
	logger.Info("  Stop Loss: %.1f%%, Take Profit: %.1f%%", cfg.StopLoss*100, cfg.TakeProfit*100)

	return &Engine{
		cfg:         cfg,
		logger:      logger,
		perf:        logging.NewPerformanceTracker(logger),
		store:       store,
		sessionID:   sessionID,
		market:      market,
		settlement:  settlement,
		signals:     signals,
		routeScorer: routeScorer,
		oppScorer:   oppScorer,
		coordinator: coordinator,
		positions:   positions,
		venues:      venues,
		tradeSize:   cfg.InitialBalance * 0.05,
	}, nil
}

func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("=== STARTING ENGINE COMPONENTS ===")

	sched := scheduler.New()
	sched.Every(config.ParseInterval(e.cfg.ScoreInterval, 30*time.Second), "score_and_execute", e.scoreAndExecute)
	sched.Every(config.ParseInterval(e.cfg.MonitorInterval, 15*time.Second), "monitor_positions", e.monitorPositions)
	sched.Every(config.ParseInterval(e.cfg.StatusInterval, 2*time.Minute), "status_update", e.statusUpdate)

	sched.Run(ctx)

	e.shutdown()
}

// scoreAndExecute runs one full cycle: discover candidate opportunities per
// supported asset, route and score them, then hand the batch to the
// coordinator.
func (e *Engine) scoreAndExecute(ctx context.Context) {
	var opps []types.Opportunity
	for _, asset := range e.cfg.SupportedAssets {
		opp, ok := e.buildOpportunity(ctx, asset)
		if !ok {
			continue
		}
		opps = append(opps, opp)
	}

	opps = e.oppScorer.ScoreAll(ctx, opps)
	if len(opps) == 0 {
		e.logger.Debug("No opportunities this cycle")
		return
	}

	byKey := make(map[types.ExecutionKey]types.Opportunity, len(opps))
	for _, o := range opps {
		byKey[o.Key()] = o
	}

	summary, err := e.coordinator.ExecuteParallel(ctx, opps)
	if err != nil {
		e.logger.Error("Execution cycle failed: %v", err)
		return
	}

	for _, res := range summary.Results {
		e.logger.LogExecution(res)
	}

	// Successful fills become managed positions: the monitor tick owns their
	// exits from here on.
	opened := openExecutedPositions(ctx, e.positions, e.market, byKey, summary.Results, e.cfg.Leverage, e.cfg.BorrowingFee)
	for _, pos := range opened {
		e.logger.LogOpen(pos, "execution fill")
	}

	e.logger.LogSummary(summary)
	e.perf.RecordSummary(summary)
	e.perf.UpdateBalance(e.settlement.Balance())
}

// openExecutedPositions converts each successful execution into a lifecycle
// position on the route's exit venue: sells become leveraged shorts, buys
// become yield positions earning the venue's APY.
func openExecutedPositions(ctx context.Context, mgr *position.Manager, market providers.MarketDataProvider, opps map[types.ExecutionKey]types.Opportunity, results []types.ExecutionResult, leverage, borrowingFee float64) []types.Position {
	var opened []types.Position
	for _, res := range results {
		if !res.Success {
			continue
		}
		o, ok := opps[res.Key]
		if !ok || o.Route == nil || o.Route.Path.Hops() == 0 {
			continue
		}
		exit := o.Route.Path.Venues[o.Route.Path.Hops()-1]

		entryPrice := 0.0
		if q, err := market.GetQuote(ctx, exit.ID, o.Asset); err == nil && q.Price > 0 {
			entryPrice = q.Price
		}

		params := position.OpenParams{
			Asset:      o.Asset,
			VenueID:    exit.ID,
			Kind:       types.KindYield,
			Amount:     o.Amount,
			EntryPrice: entryPrice,
			EntryAPY:   exit.APY,
		}
		if o.Side == types.SideSell {
			params.Kind = types.KindLeveragedShort
			params.Leverage = leverage
			params.BorrowingFee = borrowingFee
		}

		pos, err := mgr.Open(ctx, params)
		if err != nil {
			continue
		}
		opened = append(opened, pos)
	}
	return opened
}

// buildOpportunity routes one asset through the venue universe and prices the
// best path. Returns false when no viable route exists at the current quotes.
func (e *Engine) buildOpportunity(ctx context.Context, asset string) (types.Opportunity, bool) {
	signals := e.oppScorer.GatherSignals(ctx, asset)

	paths, err := routing.EnumeratePaths(e.venues, e.cfg.MaxHops)
	if err != nil {
		e.logger.Error("Path enumeration failed: %v", err)
		return types.Opportunity{}, false
	}

	sentimentTerm := (signals.SentimentScore + 1) / 2
	marketTerm := signals.PredictionConfidence
	scored := e.routeScorer.ScoreAll(ctx, paths, e.tradeSize, asset, sentimentTerm, marketTerm)
	best, err := e.routeScorer.SelectBest(scored)
	if err != nil {
		e.logger.Debug("No viable route for %s: %v", asset, err)
		return types.Opportunity{}, false
	}

	side := types.SideBuy
	if signals.PredictionDirection == "down" {
		side = types.SideSell
	}

	expected, ok := e.expectedProfit(ctx, best, e.tradeSize, asset)
	if !ok || expected <= 0 {
		return types.Opportunity{}, false
	}

	return types.Opportunity{
		Asset:          asset,
		Side:           side,
		Amount:         e.tradeSize,
		ExpectedProfit: expected,
		EstimatedCost:  best.Metrics.Cost,
		Signals:        signals,
		Route:          &best,
	}, true
}

// expectedProfit prices the edge between the route's entry and exit venues at
// current quotes, net of the route's accumulated cost.
func (e *Engine) expectedProfit(ctx context.Context, route types.ScoredRoute, amount float64, asset string) (float64, bool) {
	hops := route.Path.Venues
	entry, err := e.market.GetQuote(ctx, hops[0].ID, asset)
	if err != nil {
		return 0, false
	}
	exit, err := e.market.GetQuote(ctx, hops[len(hops)-1].ID, asset)
	if err != nil {
		return 0, false
	}
	return amount*(exit.Price-entry.Price) - route.Metrics.Cost, true
}

func (e *Engine) monitorPositions(ctx context.Context) {
	e.positions.MonitorTick(ctx)

	for _, opened := range e.positions.Rebalance(ctx) {
		e.logger.Info("REBALANCED: %s now at %s (APY %.2f%%)",
			opened.Asset, opened.VenueID, opened.EntryAPY*100)
	}
}

func (e *Engine) statusUpdate(ctx context.Context) {
	balance := e.settlement.Balance()
	e.logger.LogStatus(balance, e.positions.ActiveCount(), e.settlement.TotalPnL())

	if err := dbops.UpdateSessionBalance(ctx, e.store, e.sessionID, balance); err != nil {
		e.logger.Error("Failed to update session balance: %v", err)
	}
}

func (e *Engine) shutdown() {
	e.logger.Info("=== SHUTTING DOWN ===")

	// Drain the book with a fresh context; the run context is already done.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	closed := e.positions.CloseAll(ctx, types.CloseShutdown)
	for _, c := range closed {
		e.logger.LogClose(c)
	}

	if err := dbops.UpdateSessionBalance(ctx, e.store, e.sessionID, e.settlement.Balance()); err != nil {
		e.logger.Error("Failed to update final balance: %v", err)
	}
	if err := dbops.EndSession(ctx, e.store, e.sessionID); err != nil {
		e.logger.Error("Failed to end session: %v", err)
	}

	e.perf.LogSummary()
	e.logger.Info("Final balance: $%.2f", e.settlement.Balance())
	e.logger.Close()
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%f", &f); err != nil || f <= 0 {
		return def
	}
	return f
}
