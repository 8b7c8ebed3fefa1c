package broadcast

import (
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/candles"
	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

// EventSource is the subset of the event archive's query surface history
// replay needs.
type EventSource interface {
	QueryByMint(mint string) ([]events.Event, error)
}

// CandleSource is the subset of the candle aggregator's query surface
// history replay needs.
type CandleSource interface {
	Query(mint string, interval candles.Interval, page, pageSize uint32) (candles.QueryResult, error)
}

// recentEvents returns up to limit of the most recently archived events
// for mint, newest first.
func recentEvents(src EventSource, mint string, limit int) ([]events.Event, error) {
	all, err := src.QueryByMint(mint)
	if err != nil {
		return nil, err
	}
	return tailReversed(all, limit), nil
}

func tailReversed(all []events.Event, limit int) []events.Event {
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]events.Event, len(all))
	for i, ev := range all {
		out[len(all)-1-i] = ev
	}
	return out
}

// recentCandles returns up to limit of the most recent candles for
// (mint, interval), newest first.
func recentCandles(src CandleSource, mint string, interval candles.Interval, limit int) ([]candles.Candle, error) {
	result, err := src.Query(mint, interval, 1, 0)
	if err != nil {
		return nil, err
	}
	all := result.Candles
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]candles.Candle, len(all))
	for i, c := range all {
		out[len(all)-1-i] = c
	}
	return out, nil
}

// handleHistory replies to an explicit history{...} request with the
// same replay payload a fresh subscription triggers automatically.
func (h *Hub) handleHistory(c *Client, msg clientMessage) {
	h.replay(c, msg.Mint, msg.Interval)
}

// replay sends history_data (recent candles, if an interval was given)
// and history_event_data (recent events) for mint, matching the data
// model's "on subscribe, the server immediately replays the most recent
// N candles and the most recent M events for that mint."
func (h *Hub) replay(c *Client, mint, interval string) {
	if h.events != nil {
		evs, err := recentEvents(h.events, mint, h.historyEventLimit)
		if err != nil {
			h.log.Warn("history event replay failed", zap.String("mint", mint), zap.Error(err))
		} else {
			c.sendJSON(serverMessage{Event: "history_event_data", Data: map[string]any{"mint": mint, "events": evs}})
		}
	}

	if h.candlesSrc != nil && interval != "" {
		iv, err := candles.ParseInterval(interval)
		if err != nil {
			c.sendError(400, err.Error())
			return
		}
		recent, err := recentCandles(h.candlesSrc, mint, iv, h.historyCandleLimit)
		if err != nil {
			h.log.Warn("history candle replay failed", zap.String("mint", mint), zap.Error(err))
			return
		}
		c.sendJSON(serverMessage{Event: "history_data", Data: map[string]any{"mint": mint, "interval": iv, "candles": recent}})
	}
}
