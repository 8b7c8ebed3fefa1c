package liquidation

import (
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

type fakeStores struct{ db *pebble.DB }

func (f fakeStores) Store(mint string, dir orderbook.Direction) *orderbook.Store {
	return orderbook.NewStore(f.db, mint, dir)
}

func newTestDB(t *testing.T) *pebble.DB {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		t.Fatalf("open in-memory pebble db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedBook(t *testing.T, db *pebble.DB, mint string, dir orderbook.Direction, prices ...int64) []orderbook.MarginOrder {
	t.Helper()
	store := orderbook.NewStore(db, mint, dir)
	if err := store.Initialize("authority"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	var last uint16 = orderbook.NoIndex
	var orders []orderbook.MarginOrder
	for i, price := range prices {
		order := orderbook.MarginOrder{
			User:                "user",
			OrderID:             uint64(i + 1),
			StartTime:           uint32(1000 + i),
			LockLPStartPrice:    decimal.NewFromInt(price),
			OpenPrice:           decimal.NewFromInt(price),
			MarginInitSolAmount: 1_000_000,
			RealizedSolAmount:   1_200_000,
			BorrowAmount:        5_000_000,
			BorrowFee:           100,
		}
		idx, err := store.InsertAfter(last, order)
		if err != nil {
			t.Fatalf("InsertAfter: %v", err)
		}
		last = idx
		orders = append(orders, order)
	}
	return orders
}

func TestProcessLiquidatesSortedByPriceAscendingForUpBook(t *testing.T) {
	db := newTestDB(t)
	seedBook(t, db, "mintA", orderbook.DirectionUp, 300, 100, 200)
	p := NewProcessor(fakeStores{db: db})

	ev := events.BuySell{
		MintAccount:      "mintA",
		IsBuy:            true, // up book
		LatestPrice:      decimal.NewFromInt(150),
		LiquidateIndices: []uint16{0}, // lowest price once sorted ascending
		Timestamp:        time.Unix(2000, 0),
		Signature:        "sig1",
	}

	records, err := p.Process(ev)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if !records[0].Order.LockLPStartPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("liquidated order price = %s, want 100 (lowest in ascending sort)", records[0].Order.LockLPStartPrice)
	}
	if !records[0].ClosePrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("ClosePrice = %s, want event's latest_price 150", records[0].ClosePrice)
	}
	if records[0].CloseReason != orderbook.CloseReasonForced {
		t.Errorf("CloseReason = %s, want forced (non-FullClose carrier)", records[0].CloseReason)
	}

	store := orderbook.NewStore(db, "mintA", orderbook.DirectionUp)
	remaining, err := store.GetAllActiveOrders()
	if err != nil {
		t.Fatalf("GetAllActiveOrders: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("remaining active orders = %d, want 2", len(remaining))
	}
}

func TestProcessNoopWhenNoLiquidateIndices(t *testing.T) {
	db := newTestDB(t)
	p := NewProcessor(fakeStores{db: db})

	ev := events.BuySell{MintAccount: "mintA", IsBuy: true}
	records, err := p.Process(ev)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if records != nil {
		t.Errorf("records = %+v, want nil for no liquidate indices", records)
	}

	// Event kinds that never carry liquidate_indices are also a no-op.
	tc := events.TokenCreated{MintAccount: "mintA"}
	records, err = p.Process(tc)
	if err != nil {
		t.Fatalf("Process(TokenCreated): %v", err)
	}
	if records != nil {
		t.Errorf("records = %+v, want nil for a carrier with no liquidate_indices field", records)
	}
}

func TestProcessRejectsOutOfRangeIndex(t *testing.T) {
	db := newTestDB(t)
	seedBook(t, db, "mintA", orderbook.DirectionUp, 100)
	p := NewProcessor(fakeStores{db: db})

	ev := events.BuySell{
		MintAccount:      "mintA",
		IsBuy:            true,
		LiquidateIndices: []uint16{5},
	}
	if _, err := p.Process(ev); err == nil {
		t.Fatal("expected ErrInvalidLiquidationIndex, got nil")
	}
}

func TestCloseReasonForFullCloseByOwnerIsUserInitiated(t *testing.T) {
	db := newTestDB(t)
	store := orderbook.NewStore(db, "mintA", orderbook.DirectionDown)
	if err := store.Initialize("authority"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	order := orderbook.MarginOrder{User: "owner", OrderID: 1, StartTime: 1000}
	if _, err := store.InsertAfter(orderbook.NoIndex, order); err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}
	p := NewProcessor(fakeStores{db: db})

	selfClose := events.FullClose{
		MintAccount:      "mintA",
		IsCloseLong:      true, // long book closes against DirectionDown
		UserSolAccount:   "owner",
		OrderID:          1,
		LiquidateIndices: []uint16{0},
	}
	records, err := p.Process(selfClose)
	if err != nil {
		t.Fatalf("Process(selfClose): %v", err)
	}
	if len(records) != 1 || records[0].CloseReason != orderbook.CloseReasonUserInitiated {
		t.Fatalf("CloseReason = %v, want user_initiated", records)
	}
}

func TestTargetDirectionMapsEventKinds(t *testing.T) {
	tests := []struct {
		name string
		ev   events.Event
		dir  orderbook.Direction
		ok   bool
	}{
		{name: "buy", ev: events.BuySell{IsBuy: true}, dir: orderbook.DirectionUp, ok: true},
		{name: "sell", ev: events.BuySell{IsBuy: false}, dir: orderbook.DirectionDown, ok: true},
		{name: "long (order_type 1->up)", ev: events.LongShort{OrderType: 1}, dir: orderbook.DirectionUp, ok: true},
		{name: "short (order_type 2->down)", ev: events.LongShort{OrderType: 2}, dir: orderbook.DirectionDown, ok: true},
		{name: "token created has no direction", ev: events.TokenCreated{}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, dir, ok := TargetDirection(tt.ev)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && dir != tt.dir {
				t.Errorf("dir = %s, want %s", dir, tt.dir)
			}
		})
	}
}
