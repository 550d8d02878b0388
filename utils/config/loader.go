package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// EngineConfig contains the engine's tunable options
type EngineConfig struct {
	Name                    string   `json:"name"`
	Duration                string   `json:"duration"` // "5m", "1h", "infinite"
	InitialBalance          float64  `json:"initial_balance"`
	MaxConcurrentExecutions int      `json:"max_concurrent_executions"`
	MinProfitThreshold      float64  `json:"min_profit_threshold"` // fraction of amount
	MaxHops                 int      `json:"max_hops"`
	MinLiquidity            float64  `json:"min_liquidity"`
	MaxSlippage             float64  `json:"max_slippage"`
	ProfitRef               float64  `json:"profit_ref"`
	StopLoss                float64  `json:"stop_loss"`
	TakeProfit              float64  `json:"take_profit"`
	MinAPY                  float64  `json:"min_apy"`
	BorrowingFee            float64  `json:"borrowing_fee"`
	Leverage                float64  `json:"leverage"` // applied to leveraged shorts
	LockPeriod              string   `json:"lock_period"`
	ScoreInterval           string   `json:"score_interval"`
	MonitorInterval         string   `json:"monitor_interval"`
	StatusInterval          string   `json:"status_interval"`
	SupportedAssets         []string `json:"supported_assets"`
	TestMode                bool     `json:"test_mode"`
}

// GetDuration parses the duration string and returns a time.Duration
// Special case: "infinite" returns 0, which signals no timeout
func (c *EngineConfig) GetDuration() (time.Duration, error) {
	if c.Duration == "" {
		return 24 * time.Hour, nil
	}
	if c.IsInfinite() {
		return 0, nil
	}
	return time.ParseDuration(c.Duration)
}

// IsInfinite checks if the duration is set to run indefinitely
func (c *EngineConfig) IsInfinite() bool {
	return c.Duration == "infinite" || c.Duration == "unlimited"
}

// ParseInterval parses one of the interval fields with a fallback default.
func ParseInterval(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// VenuesConfig is the configured venue universe
type VenuesConfig struct {
	Venues []types.Venue `json:"venues"`
}

// StrategiesConfig holds the named allocation strategies
type StrategiesConfig struct {
	Strategies []types.AllocationStrategy `json:"strategies"`
}

// Loader handles loading and managing configuration
type Loader struct {
	configDir string
	cache     map[string]interface{}
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		configDir: "configs",
		cache:     make(map[string]interface{}),
	}
}

// NewLoaderWithDir creates a loader with a custom config directory
func NewLoaderWithDir(dir string) *Loader {
	return &Loader{
		configDir: dir,
		cache:     make(map[string]interface{}),
	}
}

// LoadEngineConfig loads the engine configuration
func (l *Loader) LoadEngineConfig(filename string) (*EngineConfig, error) {
	if cached, exists := l.cache[filename]; exists {
		if config, ok := cached.(*EngineConfig); ok {
			return config, nil
		}
	}

	var config EngineConfig
	if err := l.loadJSON(filename, &config); err != nil {
		return nil, err
	}

	l.applyDefaults(&config)
	l.cache[filename] = &config
	return &config, nil
}

// LoadVenues loads the venue universe. The set is effectively immutable for
// the life of the process.
func (l *Loader) LoadVenues(filename string) ([]types.Venue, error) {
	var config VenuesConfig
	if err := l.loadJSON(filename, &config); err != nil {
		return nil, err
	}
	if len(config.Venues) == 0 {
		return nil, fmt.Errorf("%w: no venues configured in %s", types.ErrInvalidParameters, filename)
	}
	seen := make(map[string]bool, len(config.Venues))
	for _, v := range config.Venues {
		if v.ID == "" || seen[v.ID] {
			return nil, fmt.Errorf("%w: duplicate or empty venue id %q", types.ErrInvalidParameters, v.ID)
		}
		seen[v.ID] = true
	}
	return config.Venues, nil
}

// LoadStrategies loads the allocation strategies and validates that every
// strategy's weights sum to 1.
func (l *Loader) LoadStrategies(filename string) ([]types.AllocationStrategy, error) {
	var config StrategiesConfig
	if err := l.loadJSON(filename, &config); err != nil {
		return nil, err
	}

	for _, s := range config.Strategies {
		var sum float64
		for _, w := range s.Weights {
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-9 {
			return nil, fmt.Errorf("%w: strategy %q weights sum to %f, want 1.0", types.ErrInvalidParameters, s.Name, sum)
		}
	}
	return config.Strategies, nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (l *Loader) LoadFromEnv(config *EngineConfig) {
	if val := os.Getenv("ENGINE_NAME"); val != "" {
		config.Name = val
	}

	if val := os.Getenv("ENGINE_DURATION"); val != "" {
		config.Duration = val
	}

	if val := os.Getenv("INITIAL_BALANCE"); val != "" {
		var balance float64
		fmt.Sscanf(val, "%f", &balance)
		if balance > 0 {
			config.InitialBalance = balance
		}
	}

	if val := os.Getenv("MAX_CONCURRENT_EXECUTIONS"); val != "" {
		var maxConc int
		fmt.Sscanf(val, "%d", &maxConc)
		if maxConc > 0 {
			config.MaxConcurrentExecutions = maxConc
		}
	}

	if val := os.Getenv("TEST_MODE"); val == "true" {
		config.TestMode = true
	}
}

// SaveConfig saves a configuration to file
func (l *Loader) SaveConfig(filename string, config interface{}) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := l.getConfigPath(filename)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	delete(l.cache, filename)
	return nil
}

// Private methods

func (l *Loader) loadJSON(filename string, v interface{}) error {
	path := l.getConfigPath(filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) getConfigPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(l.configDir, filename)
}

func (l *Loader) applyDefaults(config *EngineConfig) {
	if config.Duration == "" {
		config.Duration = "24h"
	}

	if config.InitialBalance == 0 {
		config.InitialBalance = 10000
	}

	if config.MaxConcurrentExecutions == 0 {
		config.MaxConcurrentExecutions = 3
	}

	if config.MaxHops == 0 {
		config.MaxHops = 3
	}

	if config.MinLiquidity == 0 {
		config.MinLiquidity = 10000
	}

	if config.MaxSlippage == 0 {
		config.MaxSlippage = 0.05
	}

	if config.ProfitRef == 0 {
		config.ProfitRef = 100
	}

	if config.StopLoss == 0 {
		config.StopLoss = 0.10
	}

	if config.TakeProfit == 0 {
		config.TakeProfit = 0.20
	}

	if config.MinAPY == 0 {
		config.MinAPY = 0.02
	}

	if config.BorrowingFee == 0 {
		config.BorrowingFee = 0.05
	}

	if config.Leverage == 0 {
		config.Leverage = 2
	}
}
