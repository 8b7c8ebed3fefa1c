package mintrouter

import (
	"fmt"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

// StorageHandler applies one decoded event's persistent side effects:
// the order book mutation it carries (if any), the token registry
// revision, the candle bucket update, and finally the event archive
// write. Grounded on the original source's StorageEventHandler, extended
// with the order-book-engine and candle-aggregator steps the data model
// assigns to this stage that the original's storage handler does not
// perform directly (FullClose's own order-book removal happens earlier,
// as a side effect of its own liquidate_indices entry — see the
// liquidation package).
type StorageHandler struct {
	archive EventArchive
	tokens  TokenRegistry
	books   *OrderBookRegistry
	candles CandleAggregator
}

func NewStorageHandler(archive EventArchive, tokens TokenRegistry, books *OrderBookRegistry, candles CandleAggregator) *StorageHandler {
	return &StorageHandler{archive: archive, tokens: tokens, books: books, candles: candles}
}

func (h *StorageHandler) Handle(ev events.Event) error {
	if err := h.applyOrderBookEffect(ev); err != nil {
		return fmt.Errorf("order book effect: %w", err)
	}
	if h.tokens != nil {
		if err := h.tokens.HandleEvent(ev); err != nil {
			return fmt.Errorf("token registry: %w", err)
		}
	}
	if h.candles != nil {
		if err := h.candles.HandleEvent(ev); err != nil {
			return fmt.Errorf("candle aggregator: %w", err)
		}
	}
	if h.archive != nil {
		if err := h.archive.StoreEvents(ev.EventSignature(), []events.Event{ev}); err != nil {
			return fmt.Errorf("event archive: %w", err)
		}
	}
	return nil
}

// applyOrderBookEffect is a no-op for every event kind except LongShort
// (insert a new active order) and PartialClose (revise the resting
// order's mutable fields in place). Every other carrier's order-book
// effect, if any, was already applied by the liquidation processor via
// its own liquidate_indices entries before the event reached storage.
func (h *StorageHandler) applyOrderBookEffect(ev events.Event) error {
	switch e := ev.(type) {
	case events.LongShort:
		return h.insertLongShort(e)
	case events.PartialClose:
		return h.updatePartialClose(e)
	default:
		return nil
	}
}

func (h *StorageHandler) insertLongShort(e events.LongShort) error {
	dir := orderbook.DirectionForOrderType(e.OrderType)
	store := h.books.Store(e.MintAccount, dir)

	order := orderbook.MarginOrder{
		User:                e.Payer,
		LockLPStartPrice:    e.LockLPStartPrice,
		LockLPEndPrice:      e.LockLPEndPrice,
		OpenPrice:           e.OpenPrice,
		OrderID:             e.OrderID,
		LockLPSolAmount:     e.LockLPSolAmount,
		LockLPTokenAmount:   e.LockLPTokenAmount,
		MarginSolAmount:     e.MarginSolAmount,
		MarginInitSolAmount: e.MarginSolAmount,
		BorrowAmount:        e.BorrowAmount,
		PositionAssetAmount: e.PositionAssetAmount,
		StartTime:           e.StartTime,
		EndTime:             e.EndTime,
		BorrowFee:           e.BorrowFee,
		OrderType:           e.OrderType,
	}

	_, err := insertByPrice(store, dir, order)
	if err != nil {
		return fmt.Errorf("insert long/short order_id=%d mint=%s: %w", e.OrderID, e.MintAccount, err)
	}
	return nil
}

func (h *StorageHandler) updatePartialClose(e events.PartialClose) error {
	dir := orderbook.DirectionForOrderType(e.OrderType)
	store := h.books.Store(e.MintAccount, dir)

	index, _, err := store.GetOrderByID(e.OrderID)
	if err != nil {
		return fmt.Errorf("resolve partial close order_id=%d mint=%s: %w", e.OrderID, e.MintAccount, err)
	}

	lockLPStartPrice := e.LockLPStartPrice
	lockLPEndPrice := e.LockLPEndPrice
	marginSolAmount := e.MarginSolAmount
	borrowAmount := e.BorrowAmount
	positionAssetAmount := e.PositionAssetAmount
	lockLPSolAmount := e.LockLPSolAmount
	lockLPTokenAmount := e.LockLPTokenAmount
	endTime := e.EndTime
	borrowFee := e.BorrowFee
	realizedSolAmount := e.RealizedSolAmount

	update := orderbook.Update{
		LockLPStartPrice:    &lockLPStartPrice,
		LockLPEndPrice:      &lockLPEndPrice,
		LockLPSolAmount:     &lockLPSolAmount,
		LockLPTokenAmount:   &lockLPTokenAmount,
		MarginSolAmount:     &marginSolAmount,
		BorrowAmount:        &borrowAmount,
		PositionAssetAmount: &positionAssetAmount,
		RealizedSolAmount:   &realizedSolAmount,
		EndTime:             &endTime,
		BorrowFee:           &borrowFee,
	}

	if err := store.UpdateOrder(index, e.OrderID, update); err != nil {
		return fmt.Errorf("apply partial close order_id=%d mint=%s: %w", e.OrderID, e.MintAccount, err)
	}
	return nil
}

// insertByPrice walks the book from its head to find where order
// belongs in lock_lp_start_price order (ascending for up, descending for
// dn — the same convention the liquidation processor's sort uses, per
// the data model's note that order book traversal and the liquidation
// sort share one price ordering), then inserts it there. The data model
// does not spell out an insertion algorithm directly; this is the
// natural one given that invariant, and is recorded as an Open Question
// decision.
func insertByPrice(store *orderbook.Store, dir orderbook.Direction, order orderbook.MarginOrder) (uint16, error) {
	header, err := store.LoadHeader()
	if err != nil {
		return 0, err
	}
	if header.Total == 0 {
		return store.InsertAfter(orderbook.NoIndex, order)
	}

	var insertBefore *uint16
	_, err = store.Traverse(orderbook.NoIndex, 0, func(idx uint16, o orderbook.MarginOrder) (bool, error) {
		belongsAfter := o.LockLPStartPrice.LessThan(order.LockLPStartPrice)
		if dir == orderbook.DirectionDown {
			belongsAfter = o.LockLPStartPrice.GreaterThan(order.LockLPStartPrice)
		}
		if belongsAfter {
			return true, nil
		}
		i := idx
		insertBefore = &i
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	if insertBefore == nil {
		return store.InsertAfter(header.Tail, order)
	}
	return store.InsertBefore(*insertBefore, order)
}
