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
	"token-replay-lab/internal/simulation"
	"token-replay-lab/internal/storage"
	chstore "token-replay-lab/internal/storage/clickhouse"
	"token-replay-lab/internal/storage/memory"
	"token-replay-lab/internal/storage/migrations"
	pgstore "token-replay-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Run config YAML path (required)")
	candlesFile := flag.String("candles-file", "", "JSON candle file for ad-hoc runs without ClickHouse")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for candle history")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for trade persistence")
	outputJSON := flag.Bool("json", false, "Output the full result as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	if *configPath == "" {
		logger.Fatal("--config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
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

	candleStore, cleanup, err := buildCandleStore(ctx, cfg, *candlesFile, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("candle store: %v", err)
	}
	defer cleanup()

	var tradeStore storage.TradeStore
	var aggregateStore storage.AggregateStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		tradeStore = pgstore.NewTradeStore(pool)
		aggregateStore = pgstore.NewAggregateStore(pool)
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		CandleStore:    candleStore,
		TradeStore:     tradeStore,
		AggregateStore: aggregateStore,
	})

	if len(cfg.TokenList()) > 1 {
		runBatch(ctx, logger, runner, cfg, *outputJSON)
		return
	}
	runSingle(ctx, logger, runner, cfg, *outputJSON)
}

func runSingle(ctx context.Context, logger *log.Logger, runner *simulation.Runner, cfg *config.RunConfig, outputJSON bool) {
	token := cfg.TokenList()[0]
	logger.Printf("Replaying %s (resolution=%s seed=%d)", token, cfg.Resolution, cfg.Seed)

	result, err := runner.Run(ctx, cfg, token)
	if err != nil {
		logger.Fatalf("run failed: %v", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Token:       %s\n", result.Summary.Token)
	fmt.Printf("Trades:      %d\n", result.Summary.Trades)
	fmt.Printf("Win Rate:    %.4f\n", result.Summary.WinRate)
	fmt.Printf("Avg Net PnL: %.4f%%\n", result.Summary.AvgPnlPct)
	fmt.Printf("Events:      %d\n", len(result.Events))
	for _, t := range result.Trades {
		fmt.Printf("\nTrade %s\n", t.TradeID)
		fmt.Printf("  entry=%.6f exit=%.6f reason=%s\n", t.EntryPrice, t.ExitPrice, t.ExitReason)
		fmt.Printf("  pnl=%.4f%% net=%.4f%% fees=%.6f hold=%dms\n",
			t.PnlPct, t.NetPnlPct, t.FeesPaid, t.HoldDurationMs)
	}
}

func runBatch(ctx context.Context, logger *log.Logger, runner *simulation.Runner, cfg *config.RunConfig, outputJSON bool) {
	logger.Printf("Replaying batch of %d tokens (resolution=%s seed=%d)",
		len(cfg.TokenList()), cfg.Resolution, cfg.Seed)

	batch, err := runner.RunBatch(ctx, cfg)
	if err != nil {
		logger.Fatalf("batch failed: %v", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(batch, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("\n=== Batch Summary ===\n")
	fmt.Printf("Tokens: %d\n", len(batch.Results))
	if agg := batch.Aggregate; agg != nil {
		fmt.Printf("Plan:        %s\n", agg.PlanID)
		fmt.Printf("Model:       %s\n", agg.ModelID)
		fmt.Printf("Trades:      %d\n", agg.TotalTrades)
		fmt.Printf("Win Rate:    %.4f\n", agg.WinRate)
		fmt.Printf("Median PnL:  %.4f%%\n", agg.PnlMedian)
		fmt.Printf("Max DD:      %.4f\n", agg.MaxDrawdown)
	}
}

// buildCandleStore selects the candle source: ClickHouse for real history, a
// memory store seeded from a JSON file for ad-hoc runs.
func buildCandleStore(ctx context.Context, cfg *config.RunConfig, candlesFile, clickhouseDSN string) (storage.CandleStore, func(), error) {
	noop := func() {}

	switch {
	case candlesFile != "":
		store := memory.NewCandleStore()
		data, err := os.ReadFile(candlesFile)
		if err != nil {
			return nil, noop, fmt.Errorf("read candles file: %w", err)
		}
		var candles []domain.Candle
		if err := json.Unmarshal(data, &candles); err != nil {
			return nil, noop, fmt.Errorf("parse candles file: %w", err)
		}
		for _, token := range cfg.TokenList() {
			if err := store.InsertBulk(ctx, token, cfg.ParsedResolution(), candles); err != nil {
				return nil, noop, fmt.Errorf("seed candles: %w", err)
			}
		}
		return store, noop, nil

	case clickhouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return chstore.NewCandleStore(conn), func() { conn.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("either --candles-file or --clickhouse-dsn is required")
	}
}
