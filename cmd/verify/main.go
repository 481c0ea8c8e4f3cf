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

	"token-replay-lab/internal/config"
	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/execmodel"
	"token-replay-lab/internal/observability"
	chstore "token-replay-lab/internal/storage/clickhouse"
	"token-replay-lab/internal/storage/migrations"
	pgstore "token-replay-lab/internal/storage/postgres"
	"token-replay-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Run config YAML that produced the stored trades (required)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for stored trades (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for candle history (required)")
	tradeID := flag.String("trade-id", "", "Verify a single trade instead of all trades")
	outputJSON := flag.Bool("json", false, "Output report as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[verify] ", log.LstdFlags)

	if *configPath == "" || *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--config, --postgres-dsn and --clickhouse-dsn are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	model, err := execmodel.FromConfig(cfg.ExecutionModel)
	if err != nil {
		logger.Fatalf("build execution model: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer conn.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("postgres migrations: %v", err)
	}

	verifier := verification.NewReplayVerifier(verification.Options{
		TradeStore:    pgstore.NewTradeStore(pool),
		CandleStore:   chstore.NewCandleStore(conn),
		Resolution:    cfg.ParsedResolution(),
		Plans:         map[string]*domain.ExitPlan{cfg.ExitPlan.ID(): cfg.ExitPlan},
		Models:        map[string]execmodel.Model{model.ID(): model},
		Seed:          cfg.Seed,
		EntryQuantity: cfg.EntryQuantity,
	})

	if *tradeID != "" {
		verifyOne(ctx, logger, verifier, *tradeID, *outputJSON)
		return
	}
	verifyAll(ctx, logger, verifier, *outputJSON)
}

func verifyOne(ctx context.Context, logger *log.Logger, verifier *verification.ReplayVerifier, tradeID string, outputJSON bool) {
	result, err := verifier.VerifyTrade(ctx, tradeID)
	if err != nil {
		logger.Fatalf("verify trade %s: %v", tradeID, err)
	}
	observability.RecordVerification(result.Match)

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		printResult(result)
	}

	if !result.Match {
		os.Exit(1)
	}
}

func verifyAll(ctx context.Context, logger *log.Logger, verifier *verification.ReplayVerifier, outputJSON bool) {
	report, err := verifier.VerifyAll(ctx)
	if err != nil {
		logger.Fatalf("verify all: %v", err)
	}
	for _, result := range report.Results {
		observability.RecordVerification(result.Match)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("\n=== Verification Report ===\n")
		fmt.Printf("Total:     %d\n", report.TotalTrades)
		fmt.Printf("Matched:   %d\n", report.MatchedTrades)
		fmt.Printf("Divergent: %d\n", report.DivergentTrades)
		for _, result := range report.Results {
			if !result.Match {
				printResult(&result)
			}
		}
	}

	if report.DivergentTrades > 0 {
		os.Exit(1)
	}
}

func printResult(result *verification.VerificationResult) {
	status := "MATCH"
	if !result.Match {
		status = "DIVERGENT"
	}
	fmt.Printf("\nTrade %s: %s\n", result.TradeID, status)
	for _, d := range result.Divergences {
		fmt.Printf("  %-16s stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
	}
}
