package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/OldEphraim/defi-trade-engine/archiver"
	"github.com/OldEphraim/defi-trade-engine/internal/database"
)

const (
	idleSleep         = 60 * time.Second
	shortSuccessPause = 1 * time.Second
	maxBackoffSleep   = 2 * time.Minute
)

func main() {
	var (
		tablesCSV = flag.String("tables", "executions,position_history", "Comma-separated list of tables to export")
		prefix    = flag.String("prefix", "", "S3 prefix (defaults to table name)")
		hourStr   = flag.String("hour", "", "UTC hour to export (e.g. 2026-08-29T14); if set, run once per table then exit")
		backfill  = flag.Bool("backfill", false, "Backfill oldest unarchived hour(s) before catching up")
		timeout   = flag.Duration("timeout", 10*time.Minute, "Overall timeout per export unit (one hour)")
	)
	flag.Parse()

	_ = godotenv.Load()

	tables := parseTables(*tablesCSV)
	if len(tables) == 0 {
		log.Fatal("missing -tables")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	bucket := os.Getenv("ARCHIVE_S3_BUCKET")
	if bucket == "" {
		log.Fatal("ARCHIVE_S3_BUCKET is required")
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	dbConn, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer dbConn.Close()
	queries := database.New(dbConn)

	awsCfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		log.Fatalf("aws cfg: %v", err)
	}
	s3c := s3.NewFromConfig(awsCfg)

	runner := &archiver.Runner{
		Sink: &archiver.S3Sink{
			Bucket: bucket,
			Client: s3c,
			Up:     manager.NewUploader(s3c),
		},
		Jobs:    &archiver.JobStore{Q: queries},
		Queries: queries,
		Dumpers: map[string]archiver.Dumper{
			"executions":       &archiver.ExecutionsDumper{Q: queries},
			"position_history": &archiver.PositionsDumper{Q: queries},
		},
		PrefixFn: func(tbl string) string {
			if *prefix != "" {
				return *prefix
			}
			return tbl
		},
	}

	// One-shot mode: run the requested hour for all tables and exit.
	if *hourStr != "" {
		t, err := time.Parse("2006-01-02T15", *hourStr)
		if err != nil {
			log.Fatalf("bad -hour: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		for _, tbl := range tables {
			w, _, err := runner.SelectWindow(ctx, tbl, &t, false, time.Now())
			if err != nil {
				log.Fatalf("[archiver][%s] window: %v", tbl, err)
			}
			if _, err := runner.RunOnce(ctx, tbl, w); err != nil {
				log.Fatalf("[archiver][%s] %v", tbl, err)
			}
		}
		return
	}

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, len(tables))
	for _, tbl := range tables {
		go func(tbl string) {
			errCh <- workerLoop(rootCtx, runner, tbl, *backfill, *timeout)
		}(tbl)
	}

	select {
	case <-rootCtx.Done():
		log.Printf("[archiver] shutting down (signal)")
	case err := <-errCh:
		if err != nil && rootCtx.Err() == nil {
			log.Printf("[archiver] worker fatal error: %v", err)
			cancel()
		}
	}
}

// workerLoop archives one table hour by hour, backing off on errors and
// idling while the current hour is still open.
func workerLoop(root context.Context, runner *archiver.Runner, table string, backfill bool, timeout time.Duration) error {
	backoff := time.Duration(0)
	var lastDone time.Time

	for {
		if root.Err() != nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(root, timeout)
		w, ok, err := runner.SelectWindow(ctx, table, nil, backfill, time.Now())
		var did bool
		if err == nil && ok {
			// Re-running the same closed hour is wasted work; idle instead.
			if w.Start.Equal(lastDone) {
				cancel()
				if err := sleepOrDone(root, idleSleep); err != nil {
					return nil
				}
				continue
			}
			did, err = runner.RunOnce(ctx, table, w)
		}
		cancel()

		switch {
		case err != nil:
			if backoff == 0 {
				backoff = idleSleep
			} else {
				backoff *= 2
			}
			if backoff > maxBackoffSleep {
				backoff = maxBackoffSleep
			}
			log.Printf("[archiver][%s] error: %v; backoff %s", table, err, backoff)
			if err := sleepOrDone(root, backoff); err != nil {
				return nil
			}
		case did:
			backoff = 0
			lastDone = w.Start
			if err := sleepOrDone(root, shortSuccessPause); err != nil {
				return nil
			}
		default:
			backoff = 0
			if err := sleepOrDone(root, idleSleep); err != nil {
				return nil
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseTables(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
