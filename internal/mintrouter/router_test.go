package mintrouter

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/liquidation"
	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

type fakeBroadcaster struct {
	mu           sync.Mutex
	events       []events.Event
	closedOrders int
}

func (f *fakeBroadcaster) BroadcastEvent(ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeBroadcaster) BroadcastClosedOrders(mint string, dir orderbook.Direction, records []orderbook.ClosedOrderRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedOrders += len(records)
}

func TestProcessEventRunsLiquidationBeforeStorageBeforeBroadcast(t *testing.T) {
	books := NewOrderBookRegistry(newTestDB(t))
	store := books.Store("mintA", orderbook.DirectionUp)
	if _, err := store.InsertAfter(orderbook.NoIndex, orderbook.MarginOrder{
		User: "userA", OrderID: 1, StartTime: 1000,
	}); err != nil {
		t.Fatalf("seed InsertAfter: %v", err)
	}

	liq := liquidation.NewProcessor(books)
	handler := NewStorageHandler(&fakeArchive{}, &fakeTokens{}, books, &fakeCandles{})
	broadcaster := &fakeBroadcaster{}
	router := New(liq, handler, broadcaster, zap.NewNop(), Config{})

	ev := events.BuySell{
		MintAccount:      "mintA",
		IsBuy:            true,
		LiquidateIndices: []uint16{0},
		Signature:        "sig1",
		Timestamp:        time.Unix(1000, 0),
	}

	if err := router.processEvent("mintA", ev); err != nil {
		t.Fatalf("processEvent: %v", err)
	}

	remaining, err := store.GetAllActiveOrders()
	if err != nil {
		t.Fatalf("GetAllActiveOrders: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining active orders = %d, want 0 (liquidated before storage ran)", len(remaining))
	}
	if len(broadcaster.events) != 1 {
		t.Errorf("broadcast events = %d, want 1", len(broadcaster.events))
	}
	if broadcaster.closedOrders != 1 {
		t.Errorf("broadcast closed orders = %d, want 1", broadcaster.closedOrders)
	}
}

func TestRouteCreatesOneTaskPerMintAndDrainsAsynchronously(t *testing.T) {
	books := NewOrderBookRegistry(newTestDB(t))
	liq := liquidation.NewProcessor(books)
	handler := NewStorageHandler(&fakeArchive{}, &fakeTokens{}, books, &fakeCandles{})
	broadcaster := &fakeBroadcaster{}
	router := New(liq, handler, broadcaster, zap.NewNop(), Config{})

	router.Route(events.TokenCreated{MintAccount: "mintA", Signature: "sig1"})
	router.Route(events.TokenCreated{MintAccount: "mintB", Signature: "sig2"})
	router.Route(events.TokenCreated{MintAccount: "mintA", Signature: "sig3"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		broadcaster.mu.Lock()
		n := len(broadcaster.events)
		broadcaster.mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for events to drain, got %d/3", n)
		}
		time.Sleep(time.Millisecond)
	}

	if router.ActiveMints() != 2 {
		t.Errorf("ActiveMints() = %d, want 2", router.ActiveMints())
	}
}
