package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// EngineLogger provides structured logging for the trading engine
type EngineLogger struct {
	name          string
	logLevel      LogLevel
	fileLogger    *log.Logger
	consoleLogger *log.Logger
	logFile       *os.File
	mu            sync.Mutex

	// Metrics tracking
	opensLogged  int
	closesLogged int
	errorsLogged int
}

// NewEngineLogger creates a new engine logger
func NewEngineLogger(name string) (*EngineLogger, error) {
	return NewEngineLoggerWithLevel(name, INFO)
}

// NewEngineLoggerWithLevel creates a logger with a specific log level
func NewEngineLoggerWithLevel(name string, level LogLevel) (*EngineLogger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s.log", name, timestamp)
	path := filepath.Join(logDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	return &EngineLogger{
		name:          name,
		logLevel:      level,
		fileLogger:    log.New(file, "", log.LstdFlags),
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
		logFile:       file,
	}, nil
}

// SetLevel changes the log level
func (el *EngineLogger) SetLevel(level LogLevel) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.logLevel = level
}

// Close closes the log file
func (el *EngineLogger) Close() error {
	if el.logFile != nil {
		return el.logFile.Close()
	}
	return nil
}

// Log methods for different levels

func (el *EngineLogger) Debug(format string, args ...interface{}) {
	el.log(DEBUG, format, args...)
}

func (el *EngineLogger) Info(format string, args ...interface{}) {
	el.log(INFO, format, args...)
}

func (el *EngineLogger) Warn(format string, args ...interface{}) {
	el.log(WARN, format, args...)
}

func (el *EngineLogger) Error(format string, args ...interface{}) {
	el.mu.Lock()
	el.errorsLogged++
	el.mu.Unlock()

	el.log(ERROR, format, args...)
}

func (el *EngineLogger) Critical(format string, args ...interface{}) {
	el.mu.Lock()
	el.errorsLogged++
	el.mu.Unlock()

	el.log(CRITICAL, format, args...)
}

// Engine-specific logging methods

// LogOpen logs a position entry
func (el *EngineLogger) LogOpen(pos types.Position, reason string) {
	el.mu.Lock()
	el.opensLogged++
	el.mu.Unlock()

	el.log(INFO, "=== OPENING POSITION ===")
	el.log(INFO, "  ID: %s", pos.ID)
	el.log(INFO, "  Asset: %s @ %s (%s)", pos.Asset, pos.VenueID, pos.Kind)
	el.log(INFO, "  Amount: %.4f, Leverage: %.1fx, Entry: %.4f", pos.Amount, pos.Leverage, pos.EntryPrice)
	el.log(INFO, "  Reason: %s", reason)
}

// LogClose logs a position exit
func (el *EngineLogger) LogClose(closed types.ClosedPosition) {
	el.mu.Lock()
	el.closesLogged++
	el.mu.Unlock()

	el.log(INFO, "=== CLOSING POSITION ===")
	el.log(INFO, "  ID: %s (%s)", closed.Position.ID, closed.Position.Asset)
	el.log(INFO, "  Entry: %.4f -> Exit: %.4f", closed.Position.EntryPrice, closed.ExitPrice)
	el.log(INFO, "  Net P&L: $%.2f", closed.NetPnL)
	el.log(INFO, "  Reason: %s", closed.Reason)
}

// LogRebalance logs the replacement leg of a rebalance
func (el *EngineLogger) LogRebalance(oldVenue string, pos types.Position) {
	el.log(INFO, "REBALANCE: %s moved %s -> %s (new APY %.2f%%)",
		pos.Asset, oldVenue, pos.VenueID, pos.EntryAPY*100)
}

// LogExecution logs one execution result
func (el *EngineLogger) LogExecution(res types.ExecutionResult) {
	if res.Success {
		el.log(INFO, "EXECUTED %s: profit $%.2f, cost $%.2f", res.Key, res.Profit, res.Cost)
		return
	}
	el.log(WARN, "EXECUTION FAILED %s: %s", res.Key, res.FailureReason)
}

// LogSummary logs a coordinator cycle summary
func (el *EngineLogger) LogSummary(s types.ExecutionSummary) {
	el.log(INFO, "CYCLE: %d ok, %d failed, %d deferred, profit $%.2f, cost $%.2f",
		s.Successful, s.Failed, s.Deferred, s.TotalProfit, s.TotalCost)
}

// LogStatus logs a status update
func (el *EngineLogger) LogStatus(balance float64, positions int, pnl float64) {
	el.mu.Lock()
	opens, closes, errs := el.opensLogged, el.closesLogged, el.errorsLogged
	el.mu.Unlock()

	el.log(INFO, "=== STATUS UPDATE ===")
	el.log(INFO, "  Balance: $%.2f", balance)
	el.log(INFO, "  Positions: %d", positions)
	el.log(INFO, "  P&L: $%.2f", pnl)
	el.log(INFO, "  Opens: %d, Closes: %d, Errors: %d", opens, closes, errs)
}

// Private methods

func (el *EngineLogger) log(level LogLevel, format string, args ...interface{}) {
	el.mu.Lock()
	defer el.mu.Unlock()

	if level < el.logLevel {
		return
	}

	prefix := fmt.Sprintf("[%s][%s] ", el.name, level)
	message := fmt.Sprintf(format, args...)
	fullMessage := prefix + message

	if el.fileLogger != nil {
		el.fileLogger.Println(fullMessage)
	}

	if el.consoleLogger != nil {
		el.consoleLogger.Println(el.colorize(level, fullMessage))
	}
}

func (el *EngineLogger) colorize(level LogLevel, message string) string {
	const (
		colorReset  = "\033[0m"
		colorRed    = "\033[31m"
		colorYellow = "\033[33m"
		colorPurple = "\033[35m"
		colorCyan   = "\033[36m"
		colorGray   = "\033[90m"
	)

	switch level {
	case DEBUG:
		return colorGray + message + colorReset
	case INFO:
		return colorCyan + message + colorReset
	case WARN:
		return colorYellow + message + colorReset
	case ERROR:
		return colorRed + message + colorReset
	case CRITICAL:
		return colorPurple + message + colorReset
	default:
		return message
	}
}

// PerformanceTracker tracks engine performance over time
type PerformanceTracker struct {
	logger      *EngineLogger
	startTime   time.Time
	mu          sync.Mutex
	executions  int
	wins        int
	losses      int
	totalProfit float64
	totalCost   float64
	maxDrawdown float64
	peakBalance float64
}

// NewPerformanceTracker creates a new performance tracker
func NewPerformanceTracker(logger *EngineLogger) *PerformanceTracker {
	return &PerformanceTracker{
		logger:    logger,
		startTime: time.Now(),
	}
}

// RecordSummary folds one coordinator cycle into the running totals
func (pt *PerformanceTracker) RecordSummary(s types.ExecutionSummary) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.executions += s.Successful + s.Failed
	pt.totalProfit += s.TotalProfit
	pt.totalCost += s.TotalCost
	for _, res := range s.Results {
		if res.Success && res.Profit > 0 {
			pt.wins++
		} else {
			pt.losses++
		}
	}
}

// UpdateBalance updates the current balance and tracks drawdown
func (pt *PerformanceTracker) UpdateBalance(balance float64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if balance > pt.peakBalance {
		pt.peakBalance = balance
	}
	if pt.peakBalance > 0 {
		drawdown := (pt.peakBalance - balance) / pt.peakBalance
		if drawdown > pt.maxDrawdown {
			pt.maxDrawdown = drawdown
		}
	}
}

// LogSummary logs a performance summary
func (pt *PerformanceTracker) LogSummary() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	runtime := time.Since(pt.startTime)
	pt.logger.Info("=== PERFORMANCE SUMMARY ===")
	pt.logger.Info("  Runtime: %v", runtime)
	pt.logger.Info("  Executions: %d", pt.executions)
	if pt.executions > 0 {
		pt.logger.Info("  Win Rate: %.1f%%", float64(pt.wins)/float64(pt.executions)*100)
	}
	pt.logger.Info("  Total Profit: $%.2f", pt.totalProfit)
	pt.logger.Info("  Total Cost: $%.2f", pt.totalCost)
	pt.logger.Info("  Max Drawdown: %.1f%%", pt.maxDrawdown*100)
}
