package registry

import (
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/config"
	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		t.Fatalf("open in-memory pebble db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	// URI left empty in every fixture below so saveTokenFromEvent never
	// attempts a real IPFS fetch.
	return New(db, config.IPFS{}, zap.NewNop())
}

func tokenCreated(mint, symbol, payer string, slot uint64, createdAt int64) events.TokenCreated {
	return events.TokenCreated{
		MintAccount: mint,
		Payer:       payer,
		Symbol:      symbol,
		Slot:        slot,
		Timestamp:   time.Unix(createdAt, 0),
		LatestPrice: decimal.NewFromInt(1),
	}
}

func TestHandleEventTokenCreatedThenPriceUpdate(t *testing.T) {
	s := newTestStore(t)

	if err := s.HandleEvent(tokenCreated("mintA", "ABC", "payer1", 10, 1000)); err != nil {
		t.Fatalf("HandleEvent(TokenCreated): %v", err)
	}

	detail, err := s.GetByMint("mintA")
	if err != nil {
		t.Fatalf("GetByMint: %v", err)
	}
	if detail == nil {
		t.Fatal("GetByMint(mintA) = nil, want a record")
	}
	if detail.Symbol != "ABC" || detail.CreatedSlot != 10 {
		t.Errorf("detail = %+v, want Symbol=ABC CreatedSlot=10", detail)
	}

	priceEv := events.BuySell{MintAccount: "mintA", LatestPrice: decimal.NewFromInt(42)}
	if err := s.HandleEvent(priceEv); err != nil {
		t.Fatalf("HandleEvent(price update): %v", err)
	}

	updated, err := s.GetByMint("mintA")
	if err != nil {
		t.Fatalf("GetByMint after price update: %v", err)
	}
	if !updated.LatestPrice.Equal(decimal.NewFromInt(42)) {
		t.Errorf("LatestPrice = %s, want 42", updated.LatestPrice)
	}
}

func TestHandleEventPriceUpdateForUnknownMintIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	ev := events.BuySell{MintAccount: "unseen-mint", LatestPrice: decimal.NewFromInt(1)}
	if err := s.HandleEvent(ev); err != nil {
		t.Fatalf("HandleEvent for an unseen mint should be a no-op, got error: %v", err)
	}
}

func TestHandleEventMilestoneDiscountRevisesFees(t *testing.T) {
	s := newTestStore(t)
	if err := s.HandleEvent(tokenCreated("mintA", "ABC", "payer1", 1, 100)); err != nil {
		t.Fatalf("HandleEvent(TokenCreated): %v", err)
	}

	md := events.MilestoneDiscount{MintAccount: "mintA", SwapFee: 50, BorrowFee: 25, FeeDiscountFlag: 1}
	if err := s.HandleEvent(md); err != nil {
		t.Fatalf("HandleEvent(MilestoneDiscount): %v", err)
	}

	detail, err := s.GetByMint("mintA")
	if err != nil {
		t.Fatalf("GetByMint: %v", err)
	}
	if detail.SwapFee != 50 || detail.BorrowFee != 25 || detail.FeeDiscountFlag != 1 {
		t.Errorf("fees after milestone = %+v, want SwapFee=50 BorrowFee=25 FeeDiscountFlag=1", detail)
	}
}

func TestQueriesBySymbolPayerSlotRangeAndLatest(t *testing.T) {
	s := newTestStore(t)
	if err := s.HandleEvent(tokenCreated("mintA", "ABC", "payer1", 10, 1000)); err != nil {
		t.Fatalf("HandleEvent(mintA): %v", err)
	}
	if err := s.HandleEvent(tokenCreated("mintB", "abc", "payer1", 20, 2000)); err != nil {
		t.Fatalf("HandleEvent(mintB): %v", err)
	}
	if err := s.HandleEvent(tokenCreated("mintC", "XYZ", "payer2", 30, 3000)); err != nil {
		t.Fatalf("HandleEvent(mintC): %v", err)
	}

	bySymbol, err := s.GetBySymbol("abc", 0)
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	if len(bySymbol) != 2 {
		t.Fatalf("GetBySymbol(abc, case-insensitive) = %d, want 2", len(bySymbol))
	}

	byPayer, err := s.GetByPayer("payer1")
	if err != nil {
		t.Fatalf("GetByPayer: %v", err)
	}
	if len(byPayer) != 2 {
		t.Fatalf("GetByPayer(payer1) = %d, want 2", len(byPayer))
	}

	bySlot, err := s.GetBySlotRange(15, 25)
	if err != nil {
		t.Fatalf("GetBySlotRange: %v", err)
	}
	if len(bySlot) != 1 || bySlot[0].MintAccount != "mintB" {
		t.Fatalf("GetBySlotRange(15,25) = %+v, want only mintB", bySlot)
	}

	latest, err := s.GetLatest(2, nil)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if len(latest) != 2 || latest[0].MintAccount != "mintC" {
		t.Fatalf("GetLatest(2) = %+v, want newest-first starting with mintC", latest)
	}

	before := int64(2000)
	beforeResult, err := s.GetLatest(10, &before)
	if err != nil {
		t.Fatalf("GetLatest(before=2000): %v", err)
	}
	if len(beforeResult) != 1 || beforeResult[0].MintAccount != "mintA" {
		t.Fatalf("GetLatest(before=2000) = %+v, want only mintA (created strictly before)", beforeResult)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
}
