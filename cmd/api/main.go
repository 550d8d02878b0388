package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/OldEphraim/defi-trade-engine/db"
)

type StatsResponse struct {
	SuccessfulExecutions int64     `json:"successful_executions"`
	FailedExecutions     int64     `json:"failed_executions"`
	TotalProfit          string    `json:"total_profit"`
	TotalCost            string    `json:"total_cost"`
	ClosedPositions      int64     `json:"closed_positions"`
	ActiveSessions       int64     `json:"active_sessions"`
	DBSize               string    `json:"db_size"`
	GeneratedAt          time.Time `json:"generated_at"`
}

type APIServer struct {
	store  *db.Store
	db     *sql.DB
	apiKey string
	log    *slog.Logger

	statsMu     sync.RWMutex
	latestStats *StatsResponse
}

// --------- helpers ---------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseLimit(r *http.Request, def int) int {
	limit := atoiDefault(r.URL.Query().Get("limit"), def)
	if limit < 1 || limit > 1000 {
		limit = def
	}
	return limit
}

func (s *APIServer) reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := 8000
	if ms := os.Getenv("API_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= 20000 {
			timeout = v
		}
	}
	return context.WithTimeout(r.Context(), time.Duration(timeout)*time.Millisecond)
}

func safeKeyEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if !safeKeyEq(key, s.apiKey) {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// computeStats runs one SQL pass and caches the result in memory; /api/stats
// serves the cached snapshot.
func (s *APIServer) computeStats(ctx context.Context) (*StatsResponse, error) {
	stats, err := s.store.GetExecutionStats(ctx)
	if err != nil {
		return nil, err
	}

	const q = `
SELECT
  (SELECT COUNT(*) FROM position_history)                       AS closed_positions,
  (SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL)        AS active_sessions,
  pg_size_pretty(pg_database_size(current_database()))          AS db_size,
  now()                                                         AS generated_at
`
	var res StatsResponse
	res.SuccessfulExecutions = stats.Successful
	res.FailedExecutions = stats.Failed
	res.TotalProfit = stats.TotalProfit
	res.TotalCost = stats.TotalCost

	row := s.db.QueryRowContext(ctx, q)
	if err := row.Scan(
		&res.ClosedPositions,
		&res.ActiveSessions,
		&res.DBSize,
		&res.GeneratedAt,
	); err != nil {
		return nil, err
	}

	return &res, nil
}

func (s *APIServer) refreshStatsOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	snap, err := s.computeStats(ctx)
	if err != nil {
		s.log.Error("stats refresh failed", "err", err)
		return
	}

	s.statsMu.Lock()
	s.latestStats = snap
	s.statsMu.Unlock()
}

func (s *APIServer) startStatsRefresher(interval time.Duration) {
	go func() {
		s.refreshStatsOnce()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			s.refreshStatsOnce()
		}
	}()
}

// ---------- endpoints ----------

// /api/stats — high-level engine stats (from cached snapshot)
func (s *APIServer) getStats(w http.ResponseWriter, r *http.Request) {
	s.statsMu.RLock()
	snap := s.latestStats
	s.statsMu.RUnlock()

	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "stats snapshot not ready yet",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

type executionRow struct {
	Asset         string    `json:"asset"`
	Side          string    `json:"side"`
	Success       bool      `json:"success"`
	Profit        *string   `json:"profit,omitempty"`
	Cost          *string   `json:"cost,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// /api/executions — recent execution results
func (s *APIServer) getExecutions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	limit := parseLimit(r, 100)
	rows, err := s.store.ListRecentExecutions(ctx, int32(limit))
	if err != nil {
		s.log.Error("getExecutions", "err", err)
		writeErr(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]executionRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, executionRow{
			Asset:         row.Asset,
			Side:          row.Side,
			Success:       row.Success,
			Profit:        nullable(row.Profit),
			Cost:          nullable(row.Cost),
			FailureReason: nullable(row.FailureReason),
			ExecutedAt:    row.ExecutedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type positionRow struct {
	PositionID  string     `json:"position_id"`
	Asset       string     `json:"asset"`
	VenueID     string     `json:"venue_id"`
	Kind        string     `json:"kind"`
	Amount      string     `json:"amount"`
	Leverage    string     `json:"leverage"`
	EntryPrice  *string    `json:"entry_price,omitempty"`
	ExitPrice   *string    `json:"exit_price,omitempty"`
	NetPnl      *string    `json:"net_pnl,omitempty"`
	CloseReason *string    `json:"close_reason,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	ClosedAt    time.Time  `json:"closed_at"`
}

// /api/positions — closed position history
func (s *APIServer) getPositions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	limit := parseLimit(r, 100)
	rows, err := s.store.ListClosedPositions(ctx, int32(limit))
	if err != nil {
		s.log.Error("getPositions", "err", err)
		writeErr(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]positionRow, 0, len(rows))
	for _, row := range rows {
		var openedAt *time.Time
		if row.OpenedAt.Valid {
			t := row.OpenedAt.Time.UTC()
			openedAt = &t
		}
		out = append(out, positionRow{
			PositionID:  row.PositionID.String(),
			Asset:       row.Asset,
			VenueID:     row.VenueID,
			Kind:        row.Kind,
			Amount:      row.Amount,
			Leverage:    row.Leverage,
			EntryPrice:  nullable(row.EntryPrice),
			ExitPrice:   nullable(row.ExitPrice),
			NetPnl:      nullable(row.NetPnl),
			CloseReason: nullable(row.CloseReason),
			OpenedAt:    openedAt,
			ClosedAt:    row.ClosedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type sessionRow struct {
	ID             int32      `json:"id"`
	StartBalance   *string    `json:"start_balance,omitempty"`
	CurrentBalance *string    `json:"current_balance,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// /api/sessions — engine run history
func (s *APIServer) getSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.reqCtx(r)
	defer cancel()

	limit := parseLimit(r, 50)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_balance, current_balance, started_at, ended_at
		FROM sessions
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		s.log.Error("getSessions", "err", err)
		writeErr(w, http.StatusInternalServerError, "query failed")
		return
	}
	defer rows.Close()

	var out []sessionRow
	for rows.Next() {
		var (
			row        sessionRow
			start, cur sql.NullString
			ended      sql.NullTime
		)
		if err := rows.Scan(&row.ID, &start, &cur, &row.StartedAt, &ended); err != nil {
			continue
		}
		row.StartBalance = nullable(start)
		row.CurrentBalance = nullable(cur)
		if ended.Valid {
			t := ended.Time.UTC()
			row.EndedAt = &t
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// --------- main ---------

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		log.Fatal("API_KEY must be set")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL must be set")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := db.NewStore(dbURL)
	if err != nil {
		log.Fatal("db.NewStore:", err)
	}
	rawDB, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("sql.Open:", err)
	}
	rawDB.SetMaxOpenConns(25)
	rawDB.SetMaxIdleConns(25)
	rawDB.SetConnMaxIdleTime(2 * time.Minute)
	defer rawDB.Close()

	server := &APIServer{
		store:  store,
		db:     rawDB,
		apiKey: apiKey,
		log:    logger,
	}

	server.startStatsRefresher(time.Minute)

	r := mux.NewRouter()

	// Public
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Protected
	r.HandleFunc("/api/stats", server.authenticate(server.getStats)).Methods("GET")
	r.HandleFunc("/api/executions", server.authenticate(server.getExecutions)).Methods("GET")
	r.HandleFunc("/api/positions", server.authenticate(server.getPositions)).Methods("GET")
	r.HandleFunc("/api/sessions", server.authenticate(server.getSessions)).Methods("GET")

	// CORS + logging + recover
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-API-Key"}),
	)
	h := handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, cors(r)))

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("api starting", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("api stopped", "err", err)
	}
}
