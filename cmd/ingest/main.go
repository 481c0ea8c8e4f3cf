package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/feed"
	"token-replay-lab/internal/observability"
	"token-replay-lab/internal/storage"
	chstore "token-replay-lab/internal/storage/clickhouse"
	"token-replay-lab/internal/storage/memory"
	"token-replay-lab/internal/storage/migrations"
)

func main() {
	wsEndpoint := flag.String("ws-endpoint", "", "Candle feed WebSocket endpoint (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (empty for in-memory)")
	tokens := flag.String("tokens", "", "Comma-separated token mints to subscribe (required)")
	resolution := flag.String("resolution", "minute", "Candle resolution: millisecond, second, minute, hour")
	batchSize := flag.Int("batch-size", 100, "Candles buffered per series before a flush")
	flushInterval := flag.Duration("flush-interval", 5*time.Second, "Maximum time between flushes")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}

	tokenList := splitTokens(*tokens)
	if len(tokenList) == 0 {
		logger.Fatal("--tokens is required")
	}
	for _, token := range tokenList {
		if err := domain.ValidateTokenMint(token); err != nil {
			logger.Fatalf("invalid token: %v", err)
		}
	}

	res, err := domain.ParseResolution(*resolution)
	if err != nil {
		logger.Fatalf("invalid resolution: %v", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		sig = <-sigCh
		logger.Printf("Received second signal %v, forcing exit", sig)
		os.Exit(1)
	}()

	var candleStore storage.CandleStore = memory.NewCandleStore()
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		defer conn.Close()
		candleStore = chstore.NewCandleStore(conn)
	} else {
		logger.Println("No --clickhouse-dsn given, candles are stored in memory only")
	}

	client, err := feed.NewClient(ctx, *wsEndpoint, feed.Subscription{
		Tokens:     tokenList,
		Resolution: res,
	}, nil)
	if err != nil {
		logger.Fatalf("connect to feed: %v", err)
	}
	defer client.Close()

	logger.Printf("Ingesting %d tokens at %s resolution from %s", len(tokenList), res, *wsEndpoint)

	ingester := feed.NewIngester(feed.IngesterOptions{
		Store:         candleStore,
		BatchSize:     *batchSize,
		FlushInterval: *flushInterval,
	})

	if err := ingester.Run(ctx, client.Messages()); err != nil && err != context.Canceled {
		logger.Fatalf("ingest failed: %v", err)
	}
	logger.Println("Shutdown complete")
}

func splitTokens(s string) []string {
	var tokens []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
