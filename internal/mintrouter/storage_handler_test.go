package mintrouter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

type fakeArchive struct {
	stored []events.Event
}

func (f *fakeArchive) StoreEvents(signature string, evs []events.Event) error {
	f.stored = append(f.stored, evs...)
	return nil
}

type fakeTokens struct{ handled []events.Event }

func (f *fakeTokens) HandleEvent(ev events.Event) error {
	f.handled = append(f.handled, ev)
	return nil
}

type fakeCandles struct{ handled []events.Event }

func (f *fakeCandles) HandleEvent(ev events.Event) error {
	f.handled = append(f.handled, ev)
	return nil
}

func TestStorageHandlerInsertsLongShortIntoOrderBook(t *testing.T) {
	books := NewOrderBookRegistry(newTestDB(t))
	archive := &fakeArchive{}
	tokens := &fakeTokens{}
	candles := &fakeCandles{}
	h := NewStorageHandler(archive, tokens, books, candles)

	ev := events.LongShort{
		MintAccount:      "mintA",
		OrderID:          7,
		OrderType:        2, // up/short book
		Payer:            "userA",
		LockLPStartPrice: decimal.NewFromInt(100),
		OpenPrice:        decimal.NewFromInt(100),
		MarginSolAmount:  1_000_000,
		BorrowAmount:     2_000_000,
		StartTime:        1000,
		Signature:        "sig1",
		Timestamp:        time.Unix(1000, 0),
	}

	if err := h.Handle(ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	store := books.Store("mintA", orderbook.DirectionUp)
	_, order, err := store.GetOrderByID(7)
	if err != nil {
		t.Fatalf("GetOrderByID: %v", err)
	}
	if order.User != "userA" || order.MarginSolAmount != 1_000_000 {
		t.Errorf("inserted order = %+v, want matching LongShort fields", order)
	}

	if len(archive.stored) != 1 || len(tokens.handled) != 1 || len(candles.handled) != 1 {
		t.Errorf("downstream fanout counts = archive=%d tokens=%d candles=%d, want 1 each",
			len(archive.stored), len(tokens.handled), len(candles.handled))
	}
}

func TestStorageHandlerAppliesPartialCloseUpdateInPlace(t *testing.T) {
	books := NewOrderBookRegistry(newTestDB(t))
	h := NewStorageHandler(&fakeArchive{}, &fakeTokens{}, books, &fakeCandles{})

	insert := events.LongShort{
		MintAccount: "mintA",
		OrderID:     3,
		OrderType:   1, // down/long book
		Payer:       "userA",
		OpenPrice:   decimal.NewFromInt(100),
		Signature:   "sig-open",
	}
	if err := h.Handle(insert); err != nil {
		t.Fatalf("Handle(insert): %v", err)
	}

	partial := events.PartialClose{
		MintAccount:     "mintA",
		OrderID:         3,
		OrderType:       1,
		MarginSolAmount: 500_000,
		BorrowAmount:    100_000,
		Signature:       "sig-partial",
	}
	if err := h.Handle(partial); err != nil {
		t.Fatalf("Handle(partial): %v", err)
	}

	store := books.Store("mintA", orderbook.DirectionDown)
	_, order, err := store.GetOrderByID(3)
	if err != nil {
		t.Fatalf("GetOrderByID: %v", err)
	}
	if order.MarginSolAmount != 500_000 {
		t.Errorf("MarginSolAmount after partial close = %d, want 500000", order.MarginSolAmount)
	}
}

func TestStorageHandlerNoOrderBookEffectForOtherEvents(t *testing.T) {
	books := NewOrderBookRegistry(newTestDB(t))
	h := NewStorageHandler(&fakeArchive{}, &fakeTokens{}, books, &fakeCandles{})

	ev := events.TokenCreated{MintAccount: "mintA", Signature: "sig1"}
	if err := h.Handle(ev); err != nil {
		t.Fatalf("Handle(TokenCreated): %v", err)
	}
	if books.Count() != 0 {
		t.Errorf("Count() = %d, want 0 (no order book effect for TokenCreated)", books.Count())
	}
}
