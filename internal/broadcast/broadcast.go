package broadcast

import (
	"github.com/uhyunpark/hyperlicked-indexer/internal/candles"
	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

// BroadcastEvent satisfies mintrouter.Broadcaster: pushes event_data to
// every client subscribed to the event's mint.
func (h *Hub) BroadcastEvent(ev events.Event) {
	h.publish(eventsRoom(ev.EventMint()), serverMessage{Event: "event_data", Data: ev})
}

// BroadcastClosedOrders satisfies mintrouter.Broadcaster: pushes the
// liquidation processor's closed-order records to the mint's
// liquidations room.
func (h *Hub) BroadcastClosedOrders(mint string, dir orderbook.Direction, records []orderbook.ClosedOrderRecord) {
	if len(records) == 0 {
		return
	}
	h.publish(liquidationsRoom(mint), serverMessage{
		Event: "liquidation_data",
		Data: map[string]any{
			"mint":      mint,
			"direction": dir,
			"orders":    records,
		},
	})
}

// BroadcastCandle is the candle aggregator's UpdateListener: one
// kline_data emit per interval per event, per the data model.
func (h *Hub) BroadcastCandle(mint string, interval candles.Interval, candle candles.Candle) {
	h.publish(klineRoom(mint, string(interval)), serverMessage{
		Event: "kline_data",
		Data: map[string]any{
			"mint":     mint,
			"interval": interval,
			"candle":   candle,
		},
	})
}
