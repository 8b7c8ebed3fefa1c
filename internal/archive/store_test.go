package archive

import (
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
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

func TestStoreEventsAndQueryBySignature(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	evs := []events.Event{
		events.BuySell{MintAccount: "mintA", Payer: "userA", IsBuy: true, Slot: 10, Signature: "sig1", Timestamp: time.Unix(100, 0)},
		events.TokenCreated{MintAccount: "mintA", Payer: "userA", Slot: 10, Signature: "sig1", Timestamp: time.Unix(100, 0)},
	}
	if err := s.StoreEvents("sig1", evs); err != nil {
		t.Fatalf("StoreEvents: %v", err)
	}

	got, err := s.QueryBySignature("sig1")
	if err != nil {
		t.Fatalf("QueryBySignature: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("QueryBySignature returned %d events, want 2", len(got))
	}
	if got[0].TypeCode() != events.TypeBuySell || got[1].TypeCode() != events.TypeTokenCreated {
		t.Errorf("events out of emission order: %v, %v", got[0].TypeCode(), got[1].TypeCode())
	}

	missing, err := s.QueryBySignature("nonexistent")
	if err != nil {
		t.Fatalf("QueryBySignature(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("QueryBySignature(missing) = %v, want nil", missing)
	}
}

func TestQueryByMintPaginated(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	for i := 0; i < 5; i++ {
		ev := events.BuySell{MintAccount: "mintA", Payer: "userA", Slot: uint64(i), Signature: "sig" + string(rune('1'+i))}
		if err := s.StoreEvents(ev.Signature, []events.Event{ev}); err != nil {
			t.Fatalf("StoreEvents(%d): %v", i, err)
		}
	}
	// A different mint should never show up in mintA's query.
	other := events.BuySell{MintAccount: "mintB", Payer: "userA", Slot: 99, Signature: "sig-other"}
	if err := s.StoreEvents(other.Signature, []events.Event{other}); err != nil {
		t.Fatalf("StoreEvents(other): %v", err)
	}

	page1, err := s.QueryByMintPaginated("mintA", 1, 2)
	if err != nil {
		t.Fatalf("QueryByMintPaginated page1: %v", err)
	}
	if page1.Total != 5 || len(page1.Events) != 2 || page1.TotalPages != 3 {
		t.Fatalf("page1 = %+v, want Total=5 len=2 TotalPages=3", page1)
	}

	page3, err := s.QueryByMintPaginated("mintA", 3, 2)
	if err != nil {
		t.Fatalf("QueryByMintPaginated page3: %v", err)
	}
	if len(page3.Events) != 1 {
		t.Fatalf("page3 events = %d, want 1 (5 total, page size 2)", len(page3.Events))
	}

	all, err := s.QueryByMint("mintA")
	if err != nil {
		t.Fatalf("QueryByMint: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("QueryByMint returned %d, want 5", len(all))
	}
}

func TestQueryByUserWithMintFilter(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	events1 := events.BuySell{MintAccount: "mintA", Payer: "userA", Slot: 1, Signature: "sigA1"}
	events2 := events.BuySell{MintAccount: "mintB", Payer: "userA", Slot: 2, Signature: "sigA2"}
	if err := s.StoreEvents(events1.Signature, []events.Event{events1}); err != nil {
		t.Fatalf("StoreEvents(1): %v", err)
	}
	if err := s.StoreEvents(events2.Signature, []events.Event{events2}); err != nil {
		t.Fatalf("StoreEvents(2): %v", err)
	}

	all, err := s.QueryByUser("userA", nil)
	if err != nil {
		t.Fatalf("QueryByUser(no filter): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("QueryByUser(no filter) = %d, want 2", len(all))
	}

	mintA := "mintA"
	filtered, err := s.QueryByUser("userA", &mintA)
	if err != nil {
		t.Fatalf("QueryByUser(mintA): %v", err)
	}
	if len(filtered) != 1 || filtered[0].EventMint() != "mintA" {
		t.Fatalf("QueryByUser(mintA) = %+v, want one mintA event", filtered)
	}
}

func TestQueryBySlotAndSlotRange(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	ev1 := events.BuySell{MintAccount: "mintA", Payer: "userA", Slot: 100, Signature: "sig1"}
	ev2 := events.BuySell{MintAccount: "mintA", Payer: "userA", Slot: 200, Signature: "sig2"}
	for _, ev := range []events.Event{ev1, ev2} {
		if err := s.StoreEvents(ev.EventSignature(), []events.Event{ev}); err != nil {
			t.Fatalf("StoreEvents: %v", err)
		}
	}

	atSlot, err := s.QueryBySlot(100)
	if err != nil {
		t.Fatalf("QueryBySlot: %v", err)
	}
	if len(atSlot) != 1 {
		t.Fatalf("QueryBySlot(100) = %d, want 1", len(atSlot))
	}

	ranged, err := s.QueryBySlotRange(50, 150)
	if err != nil {
		t.Fatalf("QueryBySlotRange: %v", err)
	}
	if len(ranged) != 1 {
		t.Fatalf("QueryBySlotRange(50,150) = %d, want 1", len(ranged))
	}

	both, err := s.QueryBySlotRange(0, 1000)
	if err != nil {
		t.Fatalf("QueryBySlotRange(0,1000): %v", err)
	}
	if len(both) != 2 {
		t.Fatalf("QueryBySlotRange(0,1000) = %d, want 2", len(both))
	}

	inverted, err := s.QueryBySlotRange(1000, 0)
	if err != nil {
		t.Fatalf("QueryBySlotRange(inverted): %v", err)
	}
	if inverted != nil {
		t.Errorf("QueryBySlotRange(inverted) = %v, want nil", inverted)
	}
}
