// Package broadcast is the indexer's real-time push layer: a
// room-based websocket hub generalized from the host repo's
// single-channel orderbook Hub/Client pattern to this system's three
// channel families (events, klines, liquidations), plus history replay
// on subscribe.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns every connected client and fans broadcasts out to whichever
// ones are subscribed to the target room.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage

	log *zap.Logger

	maxSubscriptionsPerClient int

	events             EventSource
	candlesSrc         CandleSource
	historyEventLimit  int
	historyCandleLimit int
}

type roomMessage struct {
	room    string
	payload []byte
}

type Config struct {
	// ClientSendBuffer sizes the hub's central broadcast queue (256 when
	// unset); each client's own send queue holds a fixed 256 messages. A
	// message that finds either queue full is dropped and logged, the
	// host's "buffer full, skip this client" policy applied at both
	// points. A slow client is not disconnected and never blocks the hub.
	ClientSendBuffer int
	// MaxSubscriptionsPerClient caps how many rooms one client may join,
	// per the data model's "per-client subscription count is capped."
	MaxSubscriptionsPerClient int
	// HistoryEventLimit caps how many recent events, and
	// HistoryCandleLimit how many recent candles, a history replay sends
	// for one mint (50 and 200 when unset).
	HistoryEventLimit  int
	HistoryCandleLimit int
}

func NewHub(log *zap.Logger, cfg Config, events EventSource, candlesSrc CandleSource) *Hub {
	sendBuffer := cfg.ClientSendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	maxSubs := cfg.MaxSubscriptionsPerClient
	if maxSubs <= 0 {
		maxSubs = 32
	}
	historyEventLimit := cfg.HistoryEventLimit
	if historyEventLimit <= 0 {
		historyEventLimit = 50
	}
	historyCandleLimit := cfg.HistoryCandleLimit
	if historyCandleLimit <= 0 {
		historyCandleLimit = 200
	}
	return &Hub{
		clients:                   make(map[*Client]bool),
		register:                  make(chan *Client),
		unregister:                make(chan *Client),
		broadcast:                 make(chan roomMessage, sendBuffer),
		log:                       log,
		maxSubscriptionsPerClient: maxSubs,
		events:                    events,
		candlesSrc:                candlesSrc,
		historyEventLimit:         historyEventLimit,
		historyCandleLimit:        historyCandleLimit,
	}
}

// Run drains the hub's register/unregister/broadcast channels until stop
// is closed. Call it once, in its own goroutine.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("client connected", zap.String("client", client.id), zap.Int("total", len(h.clients)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Info("client disconnected", zap.String("client", client.id), zap.Int("total", len(h.clients)))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.IsSubscribed(msg.room) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					h.log.Warn("client send buffer full, dropping message", zap.String("client", client.id), zap.String("room", msg.room))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// publish marshals data and enqueues it for every subscriber of room.
// Errors marshaling are logged, not returned — this is called from the
// mint router's hot path and must never block or fail event processing.
func (h *Hub) publish(room string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.log.Error("broadcast marshal failed", zap.String("room", room), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, payload: payload}:
	default:
		h.log.Warn("hub broadcast queue full, dropping message", zap.String("room", room))
	}
}

// ServeHTTP upgrades the request to a websocket connection and starts
// the new client's read/write pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            conn.RemoteAddr().String(),
		subscriptions: make(map[string]bool),
		maxSubs:       h.maxSubscriptionsPerClient,
		log:           h.log,
	}

	h.register <- client
	client.sendJSON(serverMessage{Event: "connection_success", Data: map[string]string{"client_id": client.id}})

	go client.writePump()
	go client.readPump()
}

// ClientCount reports how many websocket connections are currently
// registered.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)
