package dbops

import (
	"context"
	dbsql "database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/OldEphraim/defi-trade-engine/db"
	"github.com/OldEphraim/defi-trade-engine/internal/database"
	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// StoreLedger persists execution results and closed positions under one
// session. It implements providers.ProfitLedger.
type StoreLedger struct {
	store     *db.Store
	sessionID int32
}

func NewStoreLedger(store *db.Store, sessionID int32) *StoreLedger {
	return &StoreLedger{store: store, sessionID: sessionID}
}

func (l *StoreLedger) RecordExecution(ctx context.Context, res types.ExecutionResult) error {
	_, err := l.store.RecordExecution(ctx, database.RecordExecutionParams{
		SessionID:     dbsql.NullInt32{Int32: l.sessionID, Valid: true},
		Asset:         res.Key.Asset,
		Side:          string(res.Key.Side),
		Success:       res.Success,
		Profit:        dbsql.NullString{String: fmt.Sprintf("%.6f", res.Profit), Valid: true},
		Cost:          dbsql.NullString{String: fmt.Sprintf("%.6f", res.Cost), Valid: true},
		FailureReason: dbsql.NullString{String: res.FailureReason, Valid: res.FailureReason != ""},
		ExecutedAt:    res.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to record execution for %s: %w", res.Key, err)
	}
	return nil
}

func (l *StoreLedger) RecordClosedPosition(ctx context.Context, closed types.ClosedPosition) error {
	pos := closed.Position

	positionID, err := uuid.Parse(pos.ID)
	if err != nil {
		return fmt.Errorf("invalid position id %q: %w", pos.ID, err)
	}

	var metadata pqtype.NullRawMessage
	if len(pos.Metadata) > 0 {
		raw, err := json.Marshal(pos.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal position metadata: %w", err)
		}
		metadata = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	_, err = l.store.RecordClosedPosition(ctx, database.RecordClosedPositionParams{
		SessionID:   dbsql.NullInt32{Int32: l.sessionID, Valid: true},
		PositionID:  positionID,
		Asset:       pos.Asset,
		VenueID:     pos.VenueID,
		Kind:        string(pos.Kind),
		Amount:      fmt.Sprintf("%.6f", pos.Amount),
		Leverage:    fmt.Sprintf("%.2f", pos.Leverage),
		EntryPrice:  dbsql.NullString{String: fmt.Sprintf("%.6f", pos.EntryPrice), Valid: true},
		ExitPrice:   dbsql.NullString{String: fmt.Sprintf("%.6f", closed.ExitPrice), Valid: true},
		NetPnl:      dbsql.NullString{String: fmt.Sprintf("%.6f", closed.NetPnL), Valid: true},
		CloseReason: dbsql.NullString{String: string(closed.Reason), Valid: true},
		Metadata:    metadata,
		OpenedAt:    dbsql.NullTime{Time: pos.EntryTime, Valid: !pos.EntryTime.IsZero()},
		ClosedAt:    closed.ClosedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record closed position %s: %w", pos.ID, err)
	}
	return nil
}
