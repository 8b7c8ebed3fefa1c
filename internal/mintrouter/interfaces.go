package mintrouter

import (
	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

// EventArchive persists every decoded or synthesized event under its
// transaction signature, alongside whatever secondary indexes it keeps.
type EventArchive interface {
	StoreEvents(signature string, evs []events.Event) error
}

// TokenRegistry is driven by TokenCreated (insert), MilestoneDiscount
// (fee field revision) and any event carrying latest_price (price and
// updated_at revision).
type TokenRegistry interface {
	HandleEvent(ev events.Event) error
}

// CandleAggregator folds every priced event into its OHLC buckets across
// every configured interval.
type CandleAggregator interface {
	HandleEvent(ev events.Event) error
}

// Broadcaster fans decoded events and their liquidation side effects out
// to subscribed websocket clients.
type Broadcaster interface {
	BroadcastEvent(ev events.Event)
	BroadcastClosedOrders(mint string, dir orderbook.Direction, records []orderbook.ClosedOrderRecord)
}
