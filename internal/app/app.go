// Package app wires every indexer component into one running process:
// config and logging, the embedded KV store, the upstream reconnecting
// WebSocket client, the per-mint event router and its downstream
// storage/liquidation/broadcast stages, and the read-only HTTP/WebSocket
// query surface. Grounded on the host repo's cmd/node/main.go wiring
// order (config -> logger -> app/state -> network client -> server),
// adapted from its single-process consensus node shape to this
// indexer's single-process read pipeline shape.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/api"
	"github.com/uhyunpark/hyperlicked-indexer/internal/archive"
	"github.com/uhyunpark/hyperlicked-indexer/internal/broadcast"
	"github.com/uhyunpark/hyperlicked-indexer/internal/candles"
	"github.com/uhyunpark/hyperlicked-indexer/internal/config"
	"github.com/uhyunpark/hyperlicked-indexer/internal/liquidation"
	"github.com/uhyunpark/hyperlicked-indexer/internal/mintrouter"
	"github.com/uhyunpark/hyperlicked-indexer/internal/registry"
	"github.com/uhyunpark/hyperlicked-indexer/internal/wsclient"
)

// App owns every long-lived component and the single KV handle they
// share.
type App struct {
	cfg config.Config
	log *zap.Logger

	db *pebble.DB

	archive  *archive.Store
	registry *registry.Store
	candles  *candles.Store
	hub      *broadcast.Hub
	books    *mintrouter.OrderBookRegistry
	router   *mintrouter.Router
	wsClient *wsclient.Client
	api      *api.Server
}

// New opens the KV store and wires every component together, but starts
// nothing yet — call Run to start the upstream client and HTTP server.
func New(cfg config.Config, log *zap.Logger) (*App, error) {
	db, err := pebble.Open(cfg.Storage.DataDir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open kv store at %s: %w", cfg.Storage.DataDir, err)
	}

	archiveStore := archive.New(db)
	registryStore := registry.New(db, cfg.IPFS, log)
	books := mintrouter.NewOrderBookRegistry(db)

	// candles.New wants the hub's broadcast callback and broadcast.NewHub
	// wants the finished candle store as its history source — break the
	// cycle with a forwarding closure over a not-yet-assigned hub
	// variable; by the time any event triggers it, hub is set.
	var hub *broadcast.Hub
	candleStore := candles.New(db, func(mint string, interval candles.Interval, candle candles.Candle) {
		hub.BroadcastCandle(mint, interval, candle)
	})
	hub = broadcast.NewHub(log, broadcast.Config{
		ClientSendBuffer: cfg.API.BroadcastBufferSize,
	}, archiveStore, candleStore)

	liquidationProcessor := liquidation.NewProcessor(books)
	storageHandler := mintrouter.NewStorageHandler(archiveStore, registryStore, books, candleStore)
	router := mintrouter.New(liquidationProcessor, storageHandler, hub, log, mintrouter.Config{})

	fetcher := wsclient.NewRPCClient(cfg.RPC.HTTPURL, 10*time.Second)
	wsClient := wsclient.New(wsclient.Config{
		WebSocketURL:         cfg.RPC.WebSocketURL,
		ProgramID:            cfg.RPC.ProgramID,
		Commitment:           "confirmed",
		BaseBackoff:          cfg.Reconnect.BaseBackoff,
		MaxBackoff:           cfg.Reconnect.MaxBackoff,
		MaxPingFailures:      cfg.Reconnect.MaxPingFailures,
		MaxReconnectAttempts: cfg.Reconnect.MaxReconnectAttempts,
		PingInterval:         30 * time.Second,
		ProcessFailed:        false,
	}, fetcher, log.Sugar())

	apiServer := api.NewServer(db, archiveStore, registryStore, candleStore, hub, log)

	return &App{
		cfg:      cfg,
		log:      log,
		db:       db,
		archive:  archiveStore,
		registry: registryStore,
		candles:  candleStore,
		hub:      hub,
		books:    books,
		router:   router,
		wsClient: wsClient,
		api:      apiServer,
	}, nil
}

// Run starts every goroutine-driven component and blocks until ctx is
// canceled. It does not return the HTTP server's listen error to the
// caller directly — a failure there is logged and Run keeps running,
// matching the host's api-server-in-a-goroutine pattern. If the upstream websocket
// client exhausts its reconnect attempts, Run cancels its own context
// and returns rather than blocking forever on a dead event channel.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hub.Run(ctx.Done())
	go func() {
		if err := a.wsClient.Run(ctx); err != nil {
			a.log.Error("websocket client terminated, shutting down", zap.Error(err))
			cancel()
		}
	}()

	go func() {
		if err := a.api.Start(a.cfg.API.ListenAddr); err != nil {
			a.log.Error("api server stopped", zap.Error(err))
		}
	}()

	a.log.Info("indexer running",
		zap.String("ws_url", a.cfg.RPC.WebSocketURL),
		zap.String("api_addr", a.cfg.API.ListenAddr),
		zap.String("data_dir", a.cfg.Storage.DataDir))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.wsClient.Events():
			if !ok {
				return
			}
			a.router.Route(ev)
		}
	}
}

// Close releases the KV store handle. Call after Run's context is
// canceled and its goroutines have had a chance to wind down.
func (a *App) Close() error {
	return a.db.Close()
}
