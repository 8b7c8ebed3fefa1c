// Command indexer runs the off-chain event pipeline and read-query
// layer as a single process: config load, logger setup, component
// wiring via internal/app, then block until a terminal signal arrives.
// Grounded on the host repo's cmd/node/main.go main-package shape.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/app"
	"github.com/uhyunpark/hyperlicked-indexer/internal/config"
	"github.com/uhyunpark/hyperlicked-indexer/internal/obs"
)

func main() {
	cfg := config.LoadFromEnv("")

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/indexer.log"
	}

	logger, err := obs.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("logger initialized", zap.String("log_file", logFile))

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("wiring indexer", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing kv store", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Run(ctx)
	logger.Info("indexer shutting down")
}
