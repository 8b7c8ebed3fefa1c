// Package wsclient maintains a reconnecting WebSocket subscription to the
// origin chain's log-subscription feed, decodes events from each
// notification, and falls back to fetching a transaction's full logs when
// a CPI call may have hidden an inner "Program data:" line.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

// ConnectionState mirrors the four states the origin listener tracked so
// operators can observe exactly what the subscription is doing.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// TransactionFetcher fetches a transaction's full log lines over the
// origin chain's HTTP RPC, used as the CPI fallback path.
type TransactionFetcher interface {
	GetTransactionLogs(ctx context.Context, signature string) ([]string, error)
}

type Config struct {
	WebSocketURL         string
	ProgramID            string
	Commitment           string
	BaseBackoff          time.Duration
	MaxBackoff           time.Duration
	MaxPingFailures      int
	MaxReconnectAttempts int // 0 means retry forever
	PingInterval         time.Duration
	ProcessFailed        bool
}

// Client subscribes to program logs, decodes events and emits them on
// Events(). A single Client instance drives one reconnect loop.
type Client struct {
	cfg     Config
	decoder *events.Decoder
	fetcher TransactionFetcher
	log     *zap.SugaredLogger

	mu    sync.RWMutex
	state ConnectionState

	seen      map[string]struct{}
	seenOrder []string
	seenMu    sync.Mutex

	events chan events.Event
}

// maxSeenSignatures bounds the dedup set so a long-running process doesn't
// grow it without limit; oldest signatures are evicted first.
const maxSeenSignatures = 100_000

func New(cfg Config, fetcher TransactionFetcher, log *zap.SugaredLogger) *Client {
	return &Client{
		cfg:     cfg,
		decoder: events.NewDecoder(cfg.ProgramID, log),
		fetcher: fetcher,
		log:     log,
		seen:    make(map[string]struct{}),
		events:  make(chan events.Event, 1024),
	}
}

// Events returns the channel new decoded events are published on.
func (c *Client) Events() <-chan events.Event { return c.events }

func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run drives the reconnect loop until ctx is canceled or the configured
// MaxReconnectAttempts is exceeded, in which case it returns an error and
// the caller must treat the client as permanently stopped.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	onConnected := func() { attempts = 0 }

	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		c.setState(StateConnecting)
		err := c.connectAndListen(ctx, onConnected)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		attempts++
		if c.cfg.MaxReconnectAttempts > 0 && attempts > c.cfg.MaxReconnectAttempts {
			c.setState(StateDisconnected)
			return fmt.Errorf("max reconnect attempts (%d) exceeded, last error: %w", c.cfg.MaxReconnectAttempts, err)
		}

		c.setState(StateReconnecting)
		delay := backoff(c.cfg.BaseBackoff, c.cfg.MaxBackoff, attempts)
		c.log.Warnw("reconnect_scheduled", "attempt", attempts, "max_attempts", c.cfg.MaxReconnectAttempts, "delay", delay, "err", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return nil
		}
	}
}

// backoff implements min(base * 2^(min(attempts-1, 5)), max) + jitter(0,2)s.
func backoff(base, max time.Duration, attempts int) time.Duration {
	exp := math.Min(float64(min(attempts-1, 5)), 5)
	delay := time.Duration(float64(base) * math.Pow(2, exp))
	if delay > max {
		delay = max
	}
	jitter := time.Duration(rand.Float64() * 2 * float64(time.Second))
	return delay + jitter
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (c *Client) connectAndListen(ctx context.Context, onConnected func()) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WebSocketURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.setState(StateConnected)
	c.log.Infow("websocket_connected", "url", c.cfg.WebSocketURL)

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{"mentions": []string{c.cfg.ProgramID}},
			map[string]any{"commitment": c.cfg.Commitment},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	var writeMu sync.Mutex
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go c.pingLoop(pingCtx, conn, &writeMu)

	conn.SetPingHandler(func(data string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.PongMessage, []byte(data))
	})

	// The subscription is live and the read loop is about to start: this
	// connection attempt succeeded, so the reconnect attempt counter resets
	// regardless of how the read loop eventually ends.
	onConnected()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := c.handleMessage(ctx, msg); err != nil {
			c.log.Errorw("handle_message_failed", "err", err)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	maxFailures := c.cfg.MaxPingFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				failures++
				c.log.Warnw("ping_failed", "consecutive_failures", failures, "err", err)
				if failures >= maxFailures {
					c.log.Errorw("ping_failure_threshold_exceeded", "max", maxFailures)
					conn.Close()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

type logsNotification struct {
	Params *struct {
		Result *struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value *struct {
				Signature string          `json:"signature"`
				Err       json.RawMessage `json:"err"`
				Logs      []string        `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) handleMessage(ctx context.Context, raw []byte) error {
	var notif logsNotification
	if err := json.Unmarshal(raw, &notif); err != nil {
		return fmt.Errorf("unmarshal notification: %w", err)
	}

	if notif.Params == nil {
		// Subscription ack or some other non-log-notification response.
		return nil
	}
	result := notif.Params.Result
	if result == nil || result.Value == nil {
		return nil
	}

	signature := result.Value.Signature
	if signature == "" {
		return nil
	}

	isSuccess := len(result.Value.Err) == 0 || string(result.Value.Err) == "null"
	if !isSuccess && !c.cfg.ProcessFailed {
		return nil
	}

	if c.alreadySeen(signature) {
		return nil
	}

	slot := result.Context.Slot
	logs := result.Value.Logs

	decoded, err := c.decoder.ParseEventsWithCallStack(logs, signature, slot)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if hasDeepCPI(logs) && c.fetcher != nil {
		fullLogs, err := c.fetcher.GetTransactionLogs(ctx, signature)
		if err != nil {
			c.log.Warnw("cpi_fallback_fetch_failed", "signature", signature, "err", err)
		} else {
			fullDecoded, err := c.decoder.ParseEventsWithCallStack(fullLogs, signature, slot)
			if err != nil {
				c.log.Warnw("cpi_fallback_decode_failed", "signature", signature, "err", err)
			} else {
				decoded = mergeUnique(decoded, fullDecoded)
			}
		}
	}

	for _, ev := range decoded {
		select {
		case c.events <- ev:
		default:
			c.log.Warnw("event_channel_full_dropping", "signature", signature)
		}
	}
	return nil
}

func hasDeepCPI(logs []string) bool {
	for _, l := range logs {
		if containsAny(l, "invoke [2]", "invoke [3]", "invoke [4]") {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// mergeUnique appends events from extra that aren't already present in
// base, identified by signature plus order_id for the variants that carry
// one — matching the original's events_are_equal comparison.
func mergeUnique(base, extra []events.Event) []events.Event {
	out := make([]events.Event, len(base))
	copy(out, base)
	for _, e := range extra {
		if !existsIn(out, e) {
			out = append(out, e)
		}
	}
	return out
}

func existsIn(list []events.Event, e events.Event) bool {
	for _, o := range list {
		if eventIdentityEqual(o, e) {
			return true
		}
	}
	return false
}

func eventIdentityEqual(a, b events.Event) bool {
	if a.TypeCode() != b.TypeCode() || a.EventSignature() != b.EventSignature() {
		return false
	}
	switch av := a.(type) {
	case events.LongShort:
		bv := b.(events.LongShort)
		return av.OrderID == bv.OrderID
	case events.FullClose:
		bv := b.(events.FullClose)
		return av.OrderID == bv.OrderID
	case events.PartialClose:
		bv := b.(events.PartialClose)
		return av.OrderID == bv.OrderID
	default:
		return true
	}
}

func (c *Client) alreadySeen(signature string) bool {
	c.seenMu.Lock()
	defer c.seenMu.Unlock()
	if _, ok := c.seen[signature]; ok {
		return true
	}
	c.seen[signature] = struct{}{}
	c.seenOrder = append(c.seenOrder, signature)
	if len(c.seenOrder) > maxSeenSignatures {
		evict := c.seenOrder[0]
		c.seenOrder = c.seenOrder[1:]
		delete(c.seen, evict)
	}
	return false
}
