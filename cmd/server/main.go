// Package main runs the pooled escrow service: the in-memory ledger behind a
// JSON HTTP API, a WebSocket event feed, Prometheus metrics, and optional
// PostgreSQL/ClickHouse audit stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/eventfeed"
	"pool-escrow/internal/ledger"
	"pool-escrow/internal/logging"
	"pool-escrow/internal/observability"
	"pool-escrow/internal/storage"
	chstore "pool-escrow/internal/storage/clickhouse"
	"pool-escrow/internal/storage/memory"
	"pool-escrow/internal/storage/migrations"
	pgstore "pool-escrow/internal/storage/postgres"
	"pool-escrow/internal/token"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	admins := flag.String("admins", os.Getenv("ADMIN_ACCOUNTS"), "Comma-separated base58 administrator accounts")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	flag.Parse()

	logging.Initialize(*logLevel)
	log := logging.GetForComponent("server")

	adminAccounts, err := parseAdmins(*admins, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --admins")
	}
	if len(adminAccounts) == 0 {
		log.Fatal().Msg("--admins is required (or set ADMIN_ACCOUNTS)")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		log.Fatal().Msg("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journal, admissions, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stores")
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	hub := eventfeed.NewHub(eventfeed.DefaultHubConfig(), logging.GetForComponent("eventfeed"))
	defer hub.Close()

	bank := token.NewBank()
	authz := ledger.NewStaticAuthorizer(adminAccounts...)

	led := ledger.New(authz, bank,
		ledger.WithLogger(logging.GetForComponent("ledger")),
		ledger.WithSinks(
			observability.InstrumentSink("journal", storage.NewJournalSink(journal), metrics),
			observability.InstrumentSink("admissions", storage.NewAdmissionSink(admissions), metrics),
			observability.NewMetricsSink(metrics),
			observability.InstrumentSink("feed", hub, metrics),
		),
	)

	api := newAPI(led, bank, journal, admissions, metrics, logging.GetForComponent("api"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.Handle("GET /ws", hub)
	api.register(mux)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Keep the gauges current
	go pollGauges(ctx, led, hub, metrics)

	go func() {
		log.Info().Str("addr", *addr).Int("admins", len(adminAccounts)).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseAdmins parses a comma-separated list of base58 accounts. Admins sign
// requests with user-held keys, so an off-curve account is almost certainly a
// typo; it is accepted but flagged.
func parseAdmins(raw string, log zerolog.Logger) ([]domain.AccountID, error) {
	var accounts []domain.AccountID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := domain.ParseAccountID(part)
		if err != nil {
			return nil, fmt.Errorf("parse admin account %q: %w", part, err)
		}
		if !id.OnCurve() {
			log.Warn().Str("account", part).Msg("admin account is not an ed25519 point")
		}
		accounts = append(accounts, id)
	}
	return accounts, nil
}

// createStores builds the event journal and admission store, either in memory
// or backed by PostgreSQL and ClickHouse with migrations applied.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.EventJournal, storage.AdmissionStore, func(), error) {
	if useMemory {
		return memory.NewEventJournal(), memory.NewAdmissionStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return pgstore.NewEventJournal(pool), chstore.NewAdmissionStore(chConn), cleanup, nil
}

// pollGauges refreshes pool and feed gauges on an interval.
func pollGauges(ctx context.Context, led *ledger.Ledger, hub *eventfeed.Hub, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := led.GetAllPoolIDs()
			metrics.ActivePools.Set(float64(len(ids)))

			var held int64
			for _, id := range ids {
				if pool, err := led.GetPool(id); err == nil {
					held += pool.TotalBalance
				}
			}
			metrics.CustodyHeld.Set(float64(held))
			metrics.FeedSubscribers.Set(float64(hub.SubscriberCount()))
		}
	}
}
