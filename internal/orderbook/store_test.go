package orderbook

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/shopspring/decimal"
)

func newTestDB(t *testing.T) *pebble.DB {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		t.Fatalf("open in-memory pebble db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testOrder(user string, orderID uint64, startTime uint32) MarginOrder {
	return MarginOrder{
		User:                user,
		OrderID:             orderID,
		StartTime:           startTime,
		OpenPrice:           decimal.NewFromInt(100),
		MarginSolAmount:     1_000_000,
		MarginInitSolAmount: 1_000_000,
		BorrowAmount:        5_000_000,
		PositionAssetAmount: 50_000,
	}
}

func TestStoreInitializeRejectsDouble(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionUp)

	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Initialize("authority1"); err == nil {
		t.Fatal("second Initialize should fail, got nil error")
	}

	header, err := s.LoadHeader()
	if err != nil {
		t.Fatalf("LoadHeader: %v", err)
	}
	if header.OrderType != OrderTypeForDirection(DirectionUp) {
		t.Errorf("header.OrderType = %d, want %d", header.OrderType, OrderTypeForDirection(DirectionUp))
	}
	if header.Head != NoIndex || header.Tail != NoIndex || header.Total != 0 {
		t.Errorf("fresh header not empty: %+v", header)
	}
}

func TestInsertAfterSingleAndSecond(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionDown)
	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	first := testOrder("userA", 1, 100)
	idx0, err := s.InsertAfter(NoIndex, first)
	if err != nil {
		t.Fatalf("InsertAfter(first): %v", err)
	}
	if idx0 != 0 {
		t.Fatalf("first insert landed at %d, want 0", idx0)
	}

	second := testOrder("userB", 2, 200)
	idx1, err := s.InsertAfter(idx0, second)
	if err != nil {
		t.Fatalf("InsertAfter(second): %v", err)
	}
	if idx1 != 1 {
		t.Fatalf("second insert landed at %d, want 1", idx1)
	}

	header, err := s.LoadHeader()
	if err != nil {
		t.Fatalf("LoadHeader: %v", err)
	}
	if header.Total != 2 || header.Head != 0 || header.Tail != 1 {
		t.Errorf("header after two inserts = %+v, want Total=2 Head=0 Tail=1", header)
	}

	got0, err := s.GetOrder(0)
	if err != nil {
		t.Fatalf("GetOrder(0): %v", err)
	}
	if got0.NextOrder != 1 || got0.PrevOrder != NoIndex {
		t.Errorf("slot 0 links = next=%d prev=%d, want next=1 prev=NoIndex", got0.NextOrder, got0.PrevOrder)
	}
	got1, err := s.GetOrder(1)
	if err != nil {
		t.Fatalf("GetOrder(1): %v", err)
	}
	if got1.NextOrder != NoIndex || got1.PrevOrder != 0 {
		t.Errorf("slot 1 links = next=%d prev=%d, want next=NoIndex prev=0", got1.NextOrder, got1.PrevOrder)
	}
}

func TestInsertAfterRejectsDuplicateOrderID(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionUp)
	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	order := testOrder("userA", 7, 100)
	if _, err := s.InsertAfter(NoIndex, order); err != nil {
		t.Fatalf("first InsertAfter: %v", err)
	}
	if _, err := s.InsertAfter(0, order); err == nil {
		t.Fatal("duplicate order_id should be rejected")
	}
}

func TestGetOrderByID(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionUp)
	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	order := testOrder("userA", 42, 100)
	if _, err := s.InsertAfter(NoIndex, order); err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}

	idx, got, err := s.GetOrderByID(42)
	if err != nil {
		t.Fatalf("GetOrderByID: %v", err)
	}
	if idx != 0 || got.OrderID != 42 {
		t.Errorf("GetOrderByID = idx=%d order_id=%d, want idx=0 order_id=42", idx, got.OrderID)
	}

	if _, _, err := s.GetOrderByID(999); err == nil {
		t.Error("GetOrderByID on missing order should error")
	}
}

func TestUpdateOrderAppliesSparseFieldsAndBumpsVersion(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionUp)
	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	order := testOrder("userA", 1, 100)
	idx, err := s.InsertAfter(NoIndex, order)
	if err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}

	newMargin := uint64(2_000_000)
	if err := s.UpdateOrder(idx, 1, Update{MarginSolAmount: &newMargin}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}

	got, err := s.GetOrder(idx)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.MarginSolAmount != newMargin {
		t.Errorf("MarginSolAmount = %d, want %d", got.MarginSolAmount, newMargin)
	}
	if got.BorrowAmount != order.BorrowAmount {
		t.Errorf("BorrowAmount changed to %d, want untouched %d", got.BorrowAmount, order.BorrowAmount)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2 (1 from insert + 1 from update)", got.Version)
	}

	if err := s.UpdateOrder(idx, 999, Update{}); err == nil {
		t.Error("UpdateOrder with mismatched order_id should error")
	}
}

func TestRemoveAndArchiveSwapsTailIntoFreedSlot(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionUp)
	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var last uint16 = NoIndex
	for i, id := range []uint64{1, 2, 3} {
		idx, err := s.InsertAfter(last, testOrder("user", id, uint32(100+i)))
		if err != nil {
			t.Fatalf("InsertAfter(%d): %v", id, err)
		}
		last = idx
	}

	var archived []IndexedOrder
	err := s.RemoveAndArchive([]uint16{0}, func(batch *pebble.Batch, removed []IndexedOrder) error {
		archived = removed
		return nil
	})
	if err != nil {
		t.Fatalf("RemoveAndArchive: %v", err)
	}
	if len(archived) != 1 || archived[0].Order.OrderID != 1 {
		t.Fatalf("archived = %+v, want the order_id=1 slot", archived)
	}

	header, err := s.LoadHeader()
	if err != nil {
		t.Fatalf("LoadHeader: %v", err)
	}
	if header.Total != 2 {
		t.Fatalf("header.Total = %d, want 2", header.Total)
	}

	all, err := s.GetAllActiveOrders()
	if err != nil {
		t.Fatalf("GetAllActiveOrders: %v", err)
	}
	ids := map[uint64]bool{}
	for _, o := range all {
		ids[o.Order.OrderID] = true
	}
	if ids[1] {
		t.Error("order_id=1 should have been removed")
	}
	if !ids[2] || !ids[3] {
		t.Errorf("remaining order_ids = %v, want {2,3}", ids)
	}

	if _, err := s.orderIDExists(1); err != nil {
		t.Fatalf("orderIDExists(1): %v", err)
	}
	exists, err := s.orderIDExists(1)
	if err != nil {
		t.Fatalf("orderIDExists(1): %v", err)
	}
	if exists {
		t.Error("removed order_id=1 should no longer exist in the id map")
	}
}

func TestTraverseStopsAtCallbackFalse(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionUp)
	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	var last uint16 = NoIndex
	for i, id := range []uint64{1, 2, 3} {
		idx, err := s.InsertAfter(last, testOrder("user", id, uint32(100+i)))
		if err != nil {
			t.Fatalf("InsertAfter(%d): %v", id, err)
		}
		last = idx
	}

	var seen []uint64
	result, err := s.Traverse(NoIndex, 0, func(index uint16, order MarginOrder) (bool, error) {
		seen = append(seen, order.OrderID)
		return len(seen) < 2, nil
	})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("seen order_ids = %v, want [1 2] (head-first order)", seen)
	}
}

func TestListClosedOrdersByUserAndQueryUserActiveOrders(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, "mintA", DirectionUp)
	if err := s.Initialize("authority1"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	order := testOrder("userA", 1, 1000)
	idx, err := s.InsertAfter(NoIndex, order)
	if err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}

	mint := "mintA"
	total, active, err := QueryUserActiveOrders(db, "userA", &mint, nil, 1, 10)
	if err != nil {
		t.Fatalf("QueryUserActiveOrders: %v", err)
	}
	if total != 1 || len(active) != 1 || active[0].Order.OrderID != 1 {
		t.Fatalf("QueryUserActiveOrders = total=%d active=%+v, want 1 matching order", total, active)
	}

	var closed ClosedOrderRecord
	err = s.RemoveAndArchive([]uint16{idx}, func(batch *pebble.Batch, removed []IndexedOrder) error {
		closed = ClosedOrderRecord{
			Order:             removed[0].Order,
			CloseTimestamp:    2000,
			ClosePrice:        decimal.NewFromInt(110),
			CloseReason:       CloseReasonUserInitiated,
			FinalPnlSol:       decimal.NewFromInt(500),
			TotalBorrowFeeSol: decimal.NewFromInt(10),
			PositionDuration:  1000,
		}
		return s.PutClosedOrderRecord(batch, closed)
	})
	if err != nil {
		t.Fatalf("RemoveAndArchive with archiver: %v", err)
	}

	records, err := ListClosedOrdersByUser(db, "userA")
	if err != nil {
		t.Fatalf("ListClosedOrdersByUser: %v", err)
	}
	if len(records) != 1 || !records[0].FinalPnlSol.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("ListClosedOrdersByUser = %+v, want one record with pnl 500", records)
	}

	entries, err := ListClosedOrdersByUserRange(db, "userA", 1500, 2500)
	if err != nil {
		t.Fatalf("ListClosedOrdersByUserRange: %v", err)
	}
	if len(entries) != 1 || entries[0].Mint != "mintA" || entries[0].Direction != DirectionUp {
		t.Fatalf("ListClosedOrdersByUserRange = %+v, want one mintA/up entry", entries)
	}

	outOfRange, err := ListClosedOrdersByUserRange(db, "userA", 3000, 4000)
	if err != nil {
		t.Fatalf("ListClosedOrdersByUserRange (out of range): %v", err)
	}
	if len(outOfRange) != 0 {
		t.Errorf("out-of-range query returned %d entries, want 0", len(outOfRange))
	}

	stats, err := CalculateUserStats(db, "userA")
	if err != nil {
		t.Fatalf("CalculateUserStats: %v", err)
	}
	if stats.TotalTrades != 1 || stats.WinningTrades != 1 || stats.LosingTrades != 0 {
		t.Errorf("stats = %+v, want 1 trade, 1 win, 0 losses", stats)
	}
	if stats.TotalPnlSol != 500 || stats.TotalProfitSol != 500 {
		t.Errorf("stats pnl = %+v, want total=500 profit=500", stats)
	}

	totalAfterClose, _, err := QueryUserActiveOrders(db, "userA", &mint, nil, 1, 10)
	if err != nil {
		t.Fatalf("QueryUserActiveOrders after close: %v", err)
	}
	if totalAfterClose != 0 {
		t.Errorf("QueryUserActiveOrders after close = %d, want 0 (no more active orders)", totalAfterClose)
	}
}
