package dbops

import (
	"context"
	dbsql "database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/OldEphraim/defi-trade-engine/db"
	"github.com/OldEphraim/defi-trade-engine/internal/database"
)

// StrategyConfig holds the per-run configuration persisted with a session.
type StrategyConfig struct {
	Name           string
	Config         json.RawMessage
	InitialBalance float64
}

func GetDBConnection() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}
	return "user=postgres dbname=defi_engine_dev sslmode=disable"
}

// InitializeStrategy creates a new strategy and session in the database.
// Returns the strategy ID, session ID, and any error.
func InitializeStrategy(ctx context.Context, store *db.Store, config StrategyConfig) (strategyID int32, sessionID int32, err error) {
	strategyRec, err := store.CreateStrategy(ctx, database.CreateStrategyParams{
		Name:           config.Name,
		Config:         config.Config,
		InitialBalance: dbsql.NullString{String: fmt.Sprintf("%.2f", config.InitialBalance), Valid: true},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create strategy: %w", err)
	}

	session, err := store.CreateSession(ctx, database.CreateSessionParams{
		StrategyID:     dbsql.NullInt32{Int32: strategyRec.ID, Valid: true},
		StartBalance:   dbsql.NullString{String: fmt.Sprintf("%.2f", config.InitialBalance), Valid: true},
		CurrentBalance: dbsql.NullString{String: fmt.Sprintf("%.2f", config.InitialBalance), Valid: true},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create session: %w", err)
	}

	return strategyRec.ID, session.ID, nil
}

// UpdateSessionBalance updates the current balance for a session.
func UpdateSessionBalance(ctx context.Context, store *db.Store, sessionID int32, balance float64) error {
	err := store.UpdateSessionBalance(ctx, database.UpdateSessionBalanceParams{
		ID:             sessionID,
		CurrentBalance: dbsql.NullString{String: fmt.Sprintf("%.2f", balance), Valid: true},
	})
	if err != nil {
		return fmt.Errorf("failed to update session balance: %w", err)
	}
	return nil
}

// EndSession marks a session as ended in the database.
func EndSession(ctx context.Context, store *db.Store, sessionID int32) error {
	if err := store.EndSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}
