package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"token-replay-lab/internal/observability"
	"token-replay-lab/internal/reporting"
	pgstore "token-replay-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	format := flag.String("format", "markdown", "Output format: markdown or csv")
	outPath := flag.String("out", "", "Output file path (default stdout)")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *format != "markdown" && *format != "csv" {
		logger.Fatalf("unknown format %q, expected markdown or csv", *format)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	gen := reporting.NewGenerator(pgstore.NewTradeStore(pool), pgstore.NewAggregateStore(pool))

	report, err := gen.Generate(ctx)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}
	observability.DefaultMetrics.ReportsGenerated.Inc()

	var rendered string
	switch *format {
	case "csv":
		rendered = reporting.RenderCSV(report.StrategyMetrics)
	default:
		rendered = reporting.RenderMarkdown(report)
	}

	if *outPath == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*outPath, []byte(rendered), 0o644); err != nil {
		logger.Fatalf("write report: %v", err)
	}
	logger.Printf("Report written to %s (%d strategy rows)", *outPath, len(report.StrategyMetrics))
}
