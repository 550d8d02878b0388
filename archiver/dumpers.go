package archiver

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"time"

	"github.com/OldEphraim/defi-trade-engine/internal/database"
)

type Dumper interface {
	DumpHour(ctx context.Context, w Window, out io.Writer) (rows int64, err error)
}

type ExecutionsDumper struct{ Q *database.Queries }
type PositionsDumper struct{ Q *database.Queries }

func (d *ExecutionsDumper) DumpHour(ctx context.Context, w Window, out io.Writer) (int64, error) {
	rs, err := d.Q.DumpExecutionsHour(ctx, database.DumpExecutionsHourParams{
		ExecutedAt:   w.Start,
		ExecutedAt_2: w.End,
	})
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(out)
	var n int64
	for _, r := range rs {
		rec := struct {
			Asset         string    `json:"asset"`
			Side          string    `json:"side"`
			Success       bool      `json:"success"`
			Profit        *string   `json:"profit,omitempty"`
			Cost          *string   `json:"cost,omitempty"`
			FailureReason *string   `json:"failure_reason,omitempty"`
			ExecutedAt    time.Time `json:"executed_at"`
		}{
			Asset: r.Asset, Side: r.Side, Success: r.Success,
			Profit: nullableS(r.Profit), Cost: nullableS(r.Cost),
			FailureReason: nullableS(r.FailureReason),
			ExecutedAt:    r.ExecutedAt.UTC(),
		}
		if err := enc.Encode(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (d *PositionsDumper) DumpHour(ctx context.Context, w Window, out io.Writer) (int64, error) {
	rs, err := d.Q.DumpPositionsHour(ctx, database.DumpPositionsHourParams{
		ClosedAt:   w.Start,
		ClosedAt_2: w.End,
	})
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(out)
	var n int64
	for _, r := range rs {
		var openedAt *time.Time
		if r.OpenedAt.Valid {
			t := r.OpenedAt.Time.UTC()
			openedAt = &t
		}
		var metadata json.RawMessage
		if r.Metadata.Valid {
			metadata = r.Metadata.RawMessage
		}
		rec := struct {
			PositionID  string          `json:"position_id"`
			Asset       string          `json:"asset"`
			VenueID     string          `json:"venue_id"`
			Kind        string          `json:"kind"`
			Amount      string          `json:"amount"`
			Leverage    string          `json:"leverage"`
			EntryPrice  *string         `json:"entry_price,omitempty"`
			ExitPrice   *string         `json:"exit_price,omitempty"`
			NetPnl      *string         `json:"net_pnl,omitempty"`
			CloseReason *string         `json:"close_reason,omitempty"`
			Metadata    json.RawMessage `json:"metadata,omitempty"`
			OpenedAt    *time.Time      `json:"opened_at,omitempty"`
			ClosedAt    time.Time       `json:"closed_at"`
		}{
			PositionID: r.PositionID.String(),
			Asset:      r.Asset, VenueID: r.VenueID, Kind: r.Kind,
			Amount: r.Amount, Leverage: r.Leverage,
			EntryPrice: nullableS(r.EntryPrice), ExitPrice: nullableS(r.ExitPrice),
			NetPnl: nullableS(r.NetPnl), CloseReason: nullableS(r.CloseReason),
			Metadata: metadata, OpenedAt: openedAt,
			ClosedAt: r.ClosedAt.UTC(),
		}
		if err := enc.Encode(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func nullableS(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// Utility to wrap a Dumper with gzip streaming
func GzipStream(ctx context.Context, d Dumper, w Window, put func(r io.Reader) error) (rows int64, bytes int64, err error) {
	pr, pw := io.Pipe()
	gw := gzip.NewWriter(pw)

	type res struct {
		rows int64
		err  error
	}
	ch := make(chan res, 1)

	go func() {
		rows, derr := d.DumpHour(ctx, w, gw)
		// Flush the gzip footer before closing the pipe, or the object is a
		// truncated stream.
		if cerr := gw.Close(); derr == nil {
			derr = cerr
		}
		_ = pw.CloseWithError(derr)
		ch <- res{rows, derr}
	}()

	if err = put(pr); err != nil {
		_ = pr.CloseWithError(err)
		<-ch
		return 0, 0, err
	}
	r := <-ch
	return r.rows, 0, r.err
}
