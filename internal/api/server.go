// Package api is the indexer's read-only HTTP query surface: a
// gorilla/mux router exposing the event archive, token registry, candle
// aggregator and active order book over paginated REST endpoints, plus
// the websocket upgrade entrypoint for the broadcast layer. Modeled on
// the host repo's pkg/api/server.go router/respond pattern.
package api

import (
	"net/http"

	"github.com/cockroachdb/pebble"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/archive"
	"github.com/uhyunpark/hyperlicked-indexer/internal/broadcast"
	"github.com/uhyunpark/hyperlicked-indexer/internal/candles"
	"github.com/uhyunpark/hyperlicked-indexer/internal/registry"
)

// Server wires the read query surface over the indexer's persisted
// stores and its live broadcast hub.
type Server struct {
	router *mux.Router
	db     *pebble.DB

	archive  *archive.Store
	registry *registry.Store
	candles  *candles.Store
	hub      *broadcast.Hub

	log *zap.Logger
}

func NewServer(db *pebble.DB, archiveStore *archive.Store, registryStore *registry.Store, candleStore *candles.Store, hub *broadcast.Hub, log *zap.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		db:       db,
		archive:  archiveStore,
		registry: registryStore,
		candles:  candleStore,
		hub:      hub,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/db/events/by_mint", s.handleEventsByMint).Methods(http.MethodGet)
	s.router.HandleFunc("/db/events/by_user", s.handleEventsByUser).Methods(http.MethodGet)
	s.router.HandleFunc("/db/events/by_signature", s.handleEventsBySignature).Methods(http.MethodGet)

	s.router.HandleFunc("/api/orderbook/user/{user}/active", s.handleUserActiveOrders).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orderbook/user/{user}/history", s.handleUserOrderHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orderbook/user/{user}/stats", s.handleUserStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orderbook/{mint}/{dir}", s.handleOrderbookSnapshot).Methods(http.MethodGet)

	s.router.HandleFunc("/api/kline", s.handleKline).Methods(http.MethodGet)

	s.router.HandleFunc("/api/tokens/{mint}", s.handleTokenByMint).Methods(http.MethodGet)
	s.router.HandleFunc("/api/tokens", s.handleTokensLatest).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.hub.ServeHTTP)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the CORS-wrapped router, ready to pass to
// http.Server or httptest.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	return c.Handler(s.router)
}

// Start runs the HTTP server on addr until it errors or is shut down by
// its caller closing the underlying listener.
func (s *Server) Start(addr string) error {
	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]string{"status": "ok"})
}
