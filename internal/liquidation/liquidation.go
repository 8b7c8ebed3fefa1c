// Package liquidation applies the side effects an upstream event's
// liquidate_indices field carries: closing a batch of active margin
// orders as a consequence of a price move, before the triggering event
// itself is persisted.
package liquidation

import (
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

// ErrInvalidLiquidationIndex is returned when an event's liquidate_indices
// entry falls outside the sorted active-order list for its target book —
// an upstream invariant violation the caller must treat as fatal for the
// whole event (the data model calls this "abort the batch", not "skip
// the index").
var ErrInvalidLiquidationIndex = fmt.Errorf("liquidation: index out of range")

// Stores resolves the order book backing one (mint, direction) pair. The
// mint router owns the concrete *orderbook.Store instances; this package
// only needs to borrow one per call.
type Stores interface {
	Store(mint string, dir orderbook.Direction) *orderbook.Store
}

type Processor struct {
	stores Stores
}

func NewProcessor(stores Stores) *Processor {
	return &Processor{stores: stores}
}

// target resolves which (mint, direction) book an event's
// liquidate_indices apply to, per the upstream event-to-direction table.
// The second return value is false for events that never carry
// liquidate_indices.
func target(ev events.Event) (mint string, dir orderbook.Direction, indices []uint16, ok bool) {
	switch e := ev.(type) {
	case events.BuySell:
		if e.IsBuy {
			return e.MintAccount, orderbook.DirectionUp, e.LiquidateIndices, true
		}
		return e.MintAccount, orderbook.DirectionDown, e.LiquidateIndices, true
	case events.LongShort:
		if e.OrderType == 1 {
			return e.MintAccount, orderbook.DirectionUp, e.LiquidateIndices, true
		}
		return e.MintAccount, orderbook.DirectionDown, e.LiquidateIndices, true
	case events.FullClose:
		if e.IsCloseLong {
			return e.MintAccount, orderbook.DirectionDown, e.LiquidateIndices, true
		}
		return e.MintAccount, orderbook.DirectionUp, e.LiquidateIndices, true
	case events.PartialClose:
		if e.IsCloseLong {
			return e.MintAccount, orderbook.DirectionDown, e.LiquidateIndices, true
		}
		return e.MintAccount, orderbook.DirectionUp, e.LiquidateIndices, true
	default:
		return "", "", nil, false
	}
}

// TargetDirection exposes target's (mint, direction) resolution for
// callers that already have a Process result and need to know which book
// it closed orders against (e.g. to route a broadcast).
func TargetDirection(ev events.Event) (mint string, dir orderbook.Direction, ok bool) {
	mint, dir, _, ok = target(ev)
	return mint, dir, ok
}

// closeReasonFor derives the close_reason for one liquidated order.
// Every carrier defaults to forced; FullClose alone distinguishes a
// user closing their own position and a third party closing it through
// the same instruction, by comparing the event's order_id and
// user_sol_account against the order actually resting at that price.
func closeReasonFor(ev events.Event, order orderbook.MarginOrder) orderbook.CloseReason {
	fc, isFullClose := ev.(events.FullClose)
	if !isFullClose {
		return orderbook.CloseReasonForced
	}
	if fc.OrderID != order.OrderID {
		return orderbook.CloseReasonForced
	}
	if fc.UserSolAccount == order.User {
		return orderbook.CloseReasonUserInitiated
	}
	return orderbook.CloseReasonThirdParty
}

// closePriceFor picks the price to stamp on a closed-order record: the
// triggering event's latest_price when it carries one, falling back to
// the order's own open price for the rare carrier that does not (keeping
// every ClosedOrderRecord populated rather than leaving a zero price).
func closePriceFor(ev events.Event, order orderbook.MarginOrder) decimal.Decimal {
	if p, ok := events.LatestPriceOf(ev); ok {
		return p
	}
	return order.OpenPrice
}

// buildClosedOrderRecord snapshots order into a ClosedOrderRecord. Final
// pnl and accrued borrow fee have no upstream-authoritative formula in
// the data model (unlike, say, a partial close's locked-liquidity
// numbers, which the indexer is told to mirror verbatim rather than
// recompute) — these two are therefore computed from fields already on
// the order rather than invented: realized minus initial margin for pnl,
// and the bps borrow_fee rate applied to the principal for the fee
// total. Treat both as indicative, not as a restatement of on-chain
// accounting.
func buildClosedOrderRecord(ev events.Event, order orderbook.MarginOrder, closeTimestamp uint32) orderbook.ClosedOrderRecord {
	duration := closeTimestamp - order.StartTime
	if closeTimestamp < order.StartTime {
		duration = 0
	}

	pnl := decimal.NewFromInt(int64(order.RealizedSolAmount)).
		Sub(decimal.NewFromInt(int64(order.MarginInitSolAmount)))

	borrowFee := decimal.NewFromInt(int64(order.BorrowAmount)).
		Mul(decimal.NewFromInt(int64(order.BorrowFee))).
		Div(decimal.NewFromInt(10000))

	return orderbook.ClosedOrderRecord{
		Order:             order,
		CloseTimestamp:    closeTimestamp,
		ClosePrice:        closePriceFor(ev, order),
		CloseReason:       closeReasonFor(ev, order),
		FinalPnlSol:       pnl,
		TotalBorrowFeeSol: borrowFee,
		PositionDuration:  duration,
	}
}

// Process applies the liquidation side effects of ev, if any. It is a
// no-op for event kinds that never carry liquidate_indices, and for a
// kind that does but whose list is empty. On success it returns every
// ClosedOrderRecord written, for the caller to forward to the broadcast
// layer or candle/registry bookkeeping if desired.
func (p *Processor) Process(ev events.Event) ([]orderbook.ClosedOrderRecord, error) {
	mint, dir, indices, ok := target(ev)
	if !ok || len(indices) == 0 {
		return nil, nil
	}

	store := p.stores.Store(mint, dir)
	active, err := store.GetAllActiveOrders()
	if err != nil {
		return nil, fmt.Errorf("load active orders for mint=%s dir=%s: %w", mint, dir, err)
	}

	sorted := append([]orderbook.IndexedOrder(nil), active...)
	if dir == orderbook.DirectionUp {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Order.LockLPStartPrice.LessThan(sorted[j].Order.LockLPStartPrice)
		})
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Order.LockLPStartPrice.GreaterThan(sorted[j].Order.LockLPStartPrice)
		})
	}

	for _, idx := range indices {
		if int(idx) >= len(sorted) {
			return nil, fmt.Errorf("%w: idx=%d max=%d mint=%s dir=%s", ErrInvalidLiquidationIndex, idx, len(sorted), mint, dir)
		}
	}

	closeTimestamp := uint32(time.Now().Unix())

	slotIndices := make([]uint16, 0, len(indices))
	records := make([]orderbook.ClosedOrderRecord, 0, len(indices))
	for _, idx := range indices {
		candidate := sorted[idx]
		slotIndices = append(slotIndices, candidate.Index)
		records = append(records, buildClosedOrderRecord(ev, candidate.Order, closeTimestamp))
	}

	recordBySlot := make(map[uint16]orderbook.ClosedOrderRecord, len(records))
	for i, rec := range records {
		recordBySlot[slotIndices[i]] = rec
	}

	archiver := func(batch *pebble.Batch, removed []orderbook.IndexedOrder) error {
		for _, r := range removed {
			rec, found := recordBySlot[r.Index]
			if !found {
				// Should not happen: every index we asked to remove has a
				// precomputed record. Guard against silently dropping a
				// closure if the book ever changes shape underneath us.
				return fmt.Errorf("liquidation: no closed-order record for removed slot %d", r.Index)
			}
			if err := store.PutClosedOrderRecord(batch, rec); err != nil {
				return err
			}
		}
		return nil
	}

	if err := store.RemoveAndArchive(slotIndices, archiver); err != nil {
		return nil, fmt.Errorf("remove and archive liquidated orders for mint=%s dir=%s: %w", mint, dir, err)
	}

	return records, nil
}
