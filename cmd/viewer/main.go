package main

import (
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"
)

// The viewer opens the relay's Badger directory read-only and serves the
// inspector, so the store can be browsed while the relay is down.
// With --table it prints the rows to the terminal instead.
func main() {
	table := pflag.Bool("table", false, "print rows as a terminal table and exit")
	prefix := pflag.String("prefix", "msg:", "key prefix to scan")
	limit := pflag.Int("limit", 100, "maximum rows to print in table mode")
	pflag.Parse()

	_ = godotenv.Load()
	config, err := internal.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *table {
		rows, err := internal.ScanRows(db, *prefix, *limit, repositories.InspectMapper)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			os.Exit(1)
		}
		internal.RenderTable(os.Stdout, rows)
		return
	}

	stats := func() map[string]any {
		return map[string]any{
			"status": "viewer mode (read-only)",
			"time":   time.Now().Format(time.RFC822),
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := config.Address(config.DebugPort)
	logger.Info("Viewer started", "url", fmt.Sprintf("http://%s/?prefix=%s", address, *prefix))
	server := workers.NewHTTPServerWorker(logger, address,
		internal.InspectHandler(db, repositories.InspectMapper, stats, *prefix), time.Second)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Viewer stopped", "error", err)
	}
}
