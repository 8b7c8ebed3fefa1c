package orderbook

import (
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// Store manages one mint's order book for one direction: a doubly-linked
// list of MarginOrder slots, a header tracking head/tail/total, an
// order-id -> slot index map, and a per-user active-order index, all
// persisted atomically per mutation.
//
// Insert and delete both resequence slot indices (deletion swaps the tail
// slot into the freed position), so both acquire mu to serialize against
// each other; concurrent reads need no lock since Pebble snapshots a
// consistent view per Get/Iterator.
type Store struct {
	db   *pebble.DB
	mint string
	dir  Direction
	mu   sync.Mutex
}

func NewStore(db *pebble.DB, mint string, dir Direction) *Store {
	return &Store{db: db, mint: mint, dir: dir}
}

func (s *Store) headerKey() []byte         { return headerKey(s.mint, s.dir) }
func (s *Store) slotKey(i uint16) []byte   { return slotKey(s.mint, s.dir, i) }
func (s *Store) idMapKey(id uint64) []byte { return idMapKey(s.mint, s.dir, id) }
func (s *Store) activeKey() []byte         { return activeIndicesKey(s.mint, s.dir) }
func (s *Store) userActiveKey(o MarginOrder) []byte {
	return userActiveKey(o.User, s.mint, s.dir, o.StartTime, o.OrderID)
}

// Initialize creates an empty header for this (mint, direction) pair. It
// fails if one already exists.
func (s *Store) Initialize(authority string) error {
	if _, closer, err := s.db.Get(s.headerKey()); err == nil {
		closer.Close()
		return fmt.Errorf("%w: mint=%s direction=%s", ErrAlreadyExists, s.mint, s.dir)
	} else if err != pebble.ErrNotFound {
		return fmt.Errorf("check existing header: %w", err)
	}

	if s.dir != DirectionUp && s.dir != DirectionDown {
		return fmt.Errorf("%w: %s", ErrInvalidDirection, s.dir)
	}
	orderType := OrderTypeForDirection(s.dir)

	header := NewHeader(orderType, authority)
	encoded, err := header.encode()
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(s.headerKey(), encoded, nil); err != nil {
		return err
	}
	if err := batch.Set(s.activeKey(), mustEncodeIndices(nil), nil); err != nil {
		return err
	}
	return s.db.Apply(batch, pebble.Sync)
}

func (s *Store) LoadHeader() (Header, error) {
	data, closer, err := s.db.Get(s.headerKey())
	if err != nil {
		if err == pebble.ErrNotFound {
			return Header{}, fmt.Errorf("%w: mint=%s direction=%s", ErrNotInitialized, s.mint, s.dir)
		}
		return Header{}, fmt.Errorf("load header: %w", err)
	}
	defer closer.Close()
	return decodeHeader(data)
}

func (s *Store) saveHeaderBatch(batch *pebble.Batch, h Header) error {
	encoded, err := h.encode()
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	return batch.Set(s.headerKey(), encoded, nil)
}

func (s *Store) GetOrder(index uint16) (MarginOrder, error) {
	header, err := s.LoadHeader()
	if err != nil {
		return MarginOrder{}, err
	}
	if uint32(index) >= header.TotalCapacity {
		return MarginOrder{}, fmt.Errorf("%w: index=%d total=%d", ErrInvalidSlotIndex, index, header.Total)
	}
	data, closer, err := s.db.Get(s.slotKey(index))
	if err != nil {
		if err == pebble.ErrNotFound {
			return MarginOrder{}, fmt.Errorf("%w: index=%d", ErrOrderNotFound, index)
		}
		return MarginOrder{}, fmt.Errorf("get slot %d: %w", index, err)
	}
	defer closer.Close()
	return decodeMarginOrder(data)
}

// orderIDExists reports whether orderID already has a live slot mapping.
func (s *Store) orderIDExists(orderID uint64) (bool, error) {
	_, closer, err := s.db.Get(s.idMapKey(orderID))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check id map %d: %w", orderID, err)
	}
	closer.Close()
	return true, nil
}

func (s *Store) GetOrderByID(orderID uint64) (uint16, MarginOrder, error) {
	data, closer, err := s.db.Get(s.idMapKey(orderID))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, MarginOrder{}, fmt.Errorf("%w: order_id=%d", ErrOrderIDNotFound, orderID)
		}
		return 0, MarginOrder{}, fmt.Errorf("get id map %d: %w", orderID, err)
	}
	closer.Close()
	index, err := decodeIndex(data)
	if err != nil {
		return 0, MarginOrder{}, err
	}
	order, err := s.GetOrder(index)
	return index, order, err
}

func (s *Store) LoadActiveIndices() ([]uint16, error) {
	data, closer, err := s.db.Get(s.activeKey())
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load active indices: %w", err)
	}
	defer closer.Close()
	return decodeIndices(data)
}

// IndexedOrder pairs a slot index with the order resting there.
type IndexedOrder struct {
	Index uint16
	Order MarginOrder
}

func (s *Store) GetAllActiveOrders() ([]IndexedOrder, error) {
	indices, err := s.LoadActiveIndices()
	if err != nil {
		return nil, err
	}
	out := make([]IndexedOrder, 0, len(indices))
	for _, idx := range indices {
		order, err := s.GetOrder(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, IndexedOrder{Index: idx, Order: order})
	}
	return out, nil
}

// nextOrderIDCounter implements the "not an allocator" invariant: the
// counter only ever tracks max(seen order_id)+1, it never supplies the id
// itself — every order id is supplied by the caller, sourced from the
// upstream event that authorized it.
func nextOrderIDCounter(old uint64, orderID uint64) uint64 {
	if orderID+1 > old {
		return orderID + 1
	}
	return old
}

func validateOrderID(order MarginOrder, exists bool) error {
	if order.OrderID == 0 {
		return fmt.Errorf("%w: order_id=0", ErrInvalidOrderID)
	}
	if exists {
		return fmt.Errorf("%w: order_id=%d already present", ErrInvalidOrderID, order.OrderID)
	}
	return nil
}

// InsertAfter inserts order after afterIndex (NoIndex to insert as the
// sole/first node into an empty book) and returns the slot it landed in.
// order.OrderID must be the caller-supplied, upstream-authoritative id;
// it must be nonzero and not already live in this book.
func (s *Store) InsertAfter(afterIndex uint16, order MarginOrder) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.orderIDExists(order.OrderID)
	if err != nil {
		return 0, err
	}
	if err := validateOrderID(order, exists); err != nil {
		return 0, err
	}

	header, err := s.LoadHeader()
	if err != nil {
		return 0, err
	}
	oldTotal := header.Total

	newTotal := oldTotal + 1
	if newTotal < oldTotal {
		return 0, fmt.Errorf("orderbook: total overflow")
	}
	if uint32(newTotal) > MaxCapacity {
		return 0, fmt.Errorf("%w: max=%d", ErrExceedsCapacity, MaxCapacity)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if oldTotal == 0 {
		newOrder := order
		newOrder.PrevOrder = NoIndex
		newOrder.NextOrder = NoIndex
		newOrder.Version = 1

		if err := putOrder(batch, s.slotKey(0), newOrder); err != nil {
			return 0, err
		}
		if err := batch.Set(s.idMapKey(newOrder.OrderID), mustEncodeIndex(0), nil); err != nil {
			return 0, err
		}
		if err := batch.Set(s.userActiveKey(newOrder), nil, nil); err != nil {
			return 0, err
		}
		if err := batch.Set(s.activeKey(), mustEncodeIndices([]uint16{0}), nil); err != nil {
			return 0, err
		}

		header.Head = 0
		header.Tail = 0
		header.Total = 1
		header.TotalCapacity = 1
		header.OrderIDCounter = nextOrderIDCounter(header.OrderIDCounter, newOrder.OrderID)
		header.LastModified = uint32(time.Now().Unix())
		if err := s.saveHeaderBatch(batch, header); err != nil {
			return 0, err
		}

		if err := s.db.Apply(batch, pebble.Sync); err != nil {
			return 0, fmt.Errorf("commit insert: %w", err)
		}
		return 0, nil
	}

	if afterIndex >= oldTotal {
		return 0, fmt.Errorf("%w: index=%d total=%d", ErrInvalidSlotIndex, afterIndex, oldTotal)
	}

	afterOrder, err := s.GetOrder(afterIndex)
	if err != nil {
		return 0, err
	}
	oldNext := afterOrder.NextOrder

	newOrder := order
	newOrder.PrevOrder = afterIndex
	newOrder.NextOrder = oldNext
	newOrder.Version = 1

	newIndex := oldTotal
	if err := putOrder(batch, s.slotKey(newIndex), newOrder); err != nil {
		return 0, err
	}
	if err := batch.Set(s.idMapKey(newOrder.OrderID), mustEncodeIndex(newIndex), nil); err != nil {
		return 0, err
	}
	if err := batch.Set(s.userActiveKey(newOrder), nil, nil); err != nil {
		return 0, err
	}

	afterOrder.NextOrder = newIndex
	afterOrder.Version++
	if err := putOrder(batch, s.slotKey(afterIndex), afterOrder); err != nil {
		return 0, err
	}

	if oldNext != NoIndex {
		oldNextOrder, err := s.GetOrder(oldNext)
		if err != nil {
			return 0, err
		}
		oldNextOrder.PrevOrder = newIndex
		oldNextOrder.Version++
		if err := putOrder(batch, s.slotKey(oldNext), oldNextOrder); err != nil {
			return 0, err
		}
	} else {
		header.Tail = newIndex
	}

	activeIndices, err := s.LoadActiveIndices()
	if err != nil {
		return 0, err
	}
	activeIndices = append(activeIndices, newIndex)
	if err := batch.Set(s.activeKey(), mustEncodeIndices(activeIndices), nil); err != nil {
		return 0, err
	}

	header.Total = newTotal
	header.TotalCapacity = uint32(newTotal)
	header.OrderIDCounter = nextOrderIDCounter(header.OrderIDCounter, newOrder.OrderID)
	header.LastModified = uint32(time.Now().Unix())
	if err := s.saveHeaderBatch(batch, header); err != nil {
		return 0, err
	}

	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return newIndex, nil
}

// InsertBefore inserts order immediately ahead of beforeIndex.
func (s *Store) InsertBefore(beforeIndex uint16, order MarginOrder) (uint16, error) {
	header, err := s.LoadHeader()
	if err != nil {
		return 0, err
	}
	if header.Total == 0 {
		return s.InsertAfter(NoIndex, order)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.orderIDExists(order.OrderID)
	if err != nil {
		return 0, err
	}
	if err := validateOrderID(order, exists); err != nil {
		return 0, err
	}

	header, err = s.LoadHeader()
	if err != nil {
		return 0, err
	}
	oldTotal := header.Total

	newTotal := oldTotal + 1
	if uint32(newTotal) > MaxCapacity {
		return 0, fmt.Errorf("%w: max=%d", ErrExceedsCapacity, MaxCapacity)
	}
	if beforeIndex >= oldTotal {
		return 0, fmt.Errorf("%w: index=%d total=%d", ErrInvalidSlotIndex, beforeIndex, oldTotal)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	beforeOrder, err := s.GetOrder(beforeIndex)
	if err != nil {
		return 0, err
	}
	oldPrev := beforeOrder.PrevOrder

	newOrder := order
	newOrder.PrevOrder = oldPrev
	newOrder.NextOrder = beforeIndex
	newOrder.Version = 1

	newIndex := oldTotal
	if err := putOrder(batch, s.slotKey(newIndex), newOrder); err != nil {
		return 0, err
	}
	if err := batch.Set(s.idMapKey(newOrder.OrderID), mustEncodeIndex(newIndex), nil); err != nil {
		return 0, err
	}
	if err := batch.Set(s.userActiveKey(newOrder), nil, nil); err != nil {
		return 0, err
	}

	beforeOrder.PrevOrder = newIndex
	beforeOrder.Version++
	if err := putOrder(batch, s.slotKey(beforeIndex), beforeOrder); err != nil {
		return 0, err
	}

	if oldPrev != NoIndex {
		oldPrevOrder, err := s.GetOrder(oldPrev)
		if err != nil {
			return 0, err
		}
		oldPrevOrder.NextOrder = newIndex
		oldPrevOrder.Version++
		if err := putOrder(batch, s.slotKey(oldPrev), oldPrevOrder); err != nil {
			return 0, err
		}
	} else {
		header.Head = newIndex
	}

	activeIndices, err := s.LoadActiveIndices()
	if err != nil {
		return 0, err
	}
	activeIndices = append(activeIndices, newIndex)
	if err := batch.Set(s.activeKey(), mustEncodeIndices(activeIndices), nil); err != nil {
		return 0, err
	}

	header.Total = newTotal
	header.TotalCapacity = uint32(newTotal)
	header.OrderIDCounter = nextOrderIDCounter(header.OrderIDCounter, newOrder.OrderID)
	header.LastModified = uint32(time.Now().Unix())
	if err := s.saveHeaderBatch(batch, header); err != nil {
		return 0, err
	}

	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return newIndex, nil
}

// BatchRemoveByIndicesUnsafe removes every slot named in indices with no
// further bookkeeping beyond the order book's own invariants.
func (s *Store) BatchRemoveByIndicesUnsafe(indices []uint16) error {
	return s.RemoveAndArchive(indices, nil)
}

// RemoveAndArchive removes every slot named in indices (duplicates and
// any order tolerated), swapping the current tail slot into each freed
// position so the live set stays a dense [0, total) range, and deletes
// each removed order's user_active membership marker. Before the batch
// commits, archiver (if non-nil) is given the chance to append its own
// puts/deletes to the same atomic batch — e.g. writing closed-order
// records — so the whole transition from active to closed happens in
// one commit. archiver receives the removed orders as they existed
// immediately before unlinking, keyed by the slot index the caller asked
// to remove (not any position they may have been swapped into).
//
// Callers must have already validated that every index is live; this
// function trusts them and will corrupt the list otherwise.
func (s *Store) RemoveAndArchive(indices []uint16, archiver func(batch *pebble.Batch, removed []IndexedOrder) error) error {
	if len(indices) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]uint16(nil), indices...)
	sortDescending(sorted)
	sorted = dedupSorted(sorted)

	header, err := s.LoadHeader()
	if err != nil {
		return err
	}
	oldTotal := header.Total
	if oldTotal == 0 {
		return ErrEmpty
	}
	for _, idx := range sorted {
		if idx >= oldTotal {
			return fmt.Errorf("%w: index=%d total=%d", ErrInvalidSlotIndex, idx, oldTotal)
		}
	}

	deleteCount := uint16(len(sorted))
	if deleteCount >= oldTotal {
		return s.removeAll(archiver)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	virtualTail := oldTotal - 1
	cache := make(map[uint16]MarginOrder)
	removed := make([]IndexedOrder, 0, len(sorted))

	getCached := func(idx uint16) (MarginOrder, error) {
		if o, ok := cache[idx]; ok {
			return o, nil
		}
		return s.GetOrder(idx)
	}

	for _, removeIndex := range sorted {
		removedOrder, err := getCached(removeIndex)
		if err != nil {
			return err
		}
		removed = append(removed, IndexedOrder{Index: removeIndex, Order: removedOrder})

		removedPrev := removedOrder.PrevOrder
		removedNext := removedOrder.NextOrder

		if removedPrev != NoIndex {
			prev, err := getCached(removedPrev)
			if err != nil {
				return err
			}
			prev.NextOrder = removedNext
			prev.Version++
			cache[removedPrev] = prev
			if err := putOrder(batch, s.slotKey(removedPrev), prev); err != nil {
				return err
			}
		} else {
			header.Head = removedNext
		}

		if removedNext != NoIndex {
			next, err := getCached(removedNext)
			if err != nil {
				return err
			}
			next.PrevOrder = removedPrev
			next.Version++
			cache[removedNext] = next
			if err := putOrder(batch, s.slotKey(removedNext), next); err != nil {
				return err
			}
		} else {
			header.Tail = removedPrev
			if removedPrev != NoIndex {
				prev, err := getCached(removedPrev)
				if err != nil {
					return err
				}
				prev.NextOrder = NoIndex
				prev.Version++
				cache[removedPrev] = prev
				if err := putOrder(batch, s.slotKey(removedPrev), prev); err != nil {
					return err
				}
			}
		}

		if err := batch.Delete(s.slotKey(removeIndex), nil); err != nil {
			return err
		}
		if err := batch.Delete(s.idMapKey(removedOrder.OrderID), nil); err != nil {
			return err
		}
		if err := batch.Delete(s.userActiveKey(removedOrder), nil); err != nil {
			return err
		}

		if removeIndex < virtualTail {
			tailOrder, err := getCached(virtualTail)
			if err != nil {
				return err
			}
			tailPrev := tailOrder.PrevOrder
			tailNext := tailOrder.NextOrder
			tailOrderID := tailOrder.OrderID

			target := tailOrder
			target.Version++
			cache[removeIndex] = target
			if err := putOrder(batch, s.slotKey(removeIndex), target); err != nil {
				return err
			}
			if err := batch.Set(s.idMapKey(tailOrderID), mustEncodeIndex(removeIndex), nil); err != nil {
				return err
			}
			if err := batch.Delete(s.slotKey(virtualTail), nil); err != nil {
				return err
			}
			delete(cache, virtualTail)

			if tailPrev != NoIndex {
				prev, err := getCached(tailPrev)
				if err != nil {
					return err
				}
				prev.NextOrder = removeIndex
				prev.Version++
				cache[tailPrev] = prev
				if err := putOrder(batch, s.slotKey(tailPrev), prev); err != nil {
					return err
				}
			}
			if tailNext != NoIndex {
				next, err := getCached(tailNext)
				if err != nil {
					return err
				}
				next.PrevOrder = removeIndex
				next.Version++
				cache[tailNext] = next
				if err := putOrder(batch, s.slotKey(tailNext), next); err != nil {
					return err
				}
			}
		}

		virtualTail--
	}

	newTotal := oldTotal - deleteCount
	header.Total = newTotal
	header.TotalCapacity = uint32(newTotal)

	if header.Tail >= newTotal {
		if newTotal > 0 {
			current := header.Head
			for {
				if current >= newTotal {
					if header.Head < newTotal {
						header.Tail = header.Head
					} else {
						header.Tail = NoIndex
					}
					break
				}
				order, err := getCached(current)
				if err != nil {
					return err
				}
				if order.NextOrder == NoIndex || order.NextOrder >= newTotal {
					header.Tail = current
					if order.NextOrder != NoIndex {
						order.NextOrder = NoIndex
						order.Version++
						cache[current] = order
						if err := putOrder(batch, s.slotKey(current), order); err != nil {
							return err
						}
					}
					break
				}
				next := order.NextOrder
				if next == header.Head {
					header.Tail = NoIndex
					break
				}
				current = next
			}
		} else {
			header.Tail = NoIndex
		}
	}

	header.LastModified = uint32(time.Now().Unix())
	if err := s.saveHeaderBatch(batch, header); err != nil {
		return err
	}

	activeIndices := make([]uint16, newTotal)
	for i := range activeIndices {
		activeIndices[i] = uint16(i)
	}
	if err := batch.Set(s.activeKey(), mustEncodeIndices(activeIndices), nil); err != nil {
		return err
	}

	if archiver != nil {
		if err := archiver(batch, removed); err != nil {
			return fmt.Errorf("archive removed orders: %w", err)
		}
	}

	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return fmt.Errorf("commit batch remove: %w", err)
	}
	return nil
}

func (s *Store) removeAll(archiver func(batch *pebble.Batch, removed []IndexedOrder) error) error {
	indexed, err := s.GetAllActiveOrders()
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, io := range indexed {
		if err := batch.Delete(s.slotKey(io.Index), nil); err != nil {
			return err
		}
		if err := batch.Delete(s.idMapKey(io.Order.OrderID), nil); err != nil {
			return err
		}
		if err := batch.Delete(s.userActiveKey(io.Order), nil); err != nil {
			return err
		}
	}

	header, err := s.LoadHeader()
	if err != nil {
		return err
	}
	header.Head = NoIndex
	header.Tail = NoIndex
	header.Total = 0
	header.TotalCapacity = 0
	header.LastModified = uint32(time.Now().Unix())
	if err := s.saveHeaderBatch(batch, header); err != nil {
		return err
	}
	if err := batch.Set(s.activeKey(), mustEncodeIndices(nil), nil); err != nil {
		return err
	}

	if archiver != nil {
		if err := archiver(batch, indexed); err != nil {
			return fmt.Errorf("archive removed orders: %w", err)
		}
	}

	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return fmt.Errorf("commit remove all: %w", err)
	}
	return nil
}

// PutClosedOrderRecord appends a ClosedOrderRecord write to batch under
// this store's (mint, direction). Callers use this inside the archiver
// passed to RemoveAndArchive so the closed-order write lands in the same
// atomic commit as the removal it documents.
func (s *Store) PutClosedOrderRecord(batch *pebble.Batch, record ClosedOrderRecord) error {
	encoded, err := record.encode()
	if err != nil {
		return fmt.Errorf("encode closed order record: %w", err)
	}
	key := closedOrderKey(record.Order.User, record.CloseTimestamp, s.mint, s.dir, record.Order.OrderID)
	return batch.Set(key, encoded, nil)
}

// ListClosedOrdersByUser returns every closed-order record archived for
// user across every mint and direction, oldest closure first. Unlike the
// rest of this package it is not scoped to a single Store, since the
// closed-order key groups by user ahead of (mint, direction) precisely
// so this cross-book query is one prefix scan.
func ListClosedOrdersByUser(db *pebble.DB, user string) ([]ClosedOrderRecord, error) {
	prefix := []byte(fmt.Sprintf("closed_order:%s:", user))
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("open closed order iterator: %w", err)
	}
	defer iter.Close()

	var out []ClosedOrderRecord
	for iter.First(); iter.Valid(); iter.Next() {
		record, err := decodeClosedOrderRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode closed order record: %w", err)
		}
		out = append(out, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate closed orders: %w", err)
	}
	return out, nil
}

// UpdateOrder revises the mutable fields of the order at updateIndex,
// after verifying it still carries orderID (a caller may be working from
// a stale index if a concurrent delete resequenced slots first). user,
// order_id, start_time, order_type, next_order and prev_order are not
// revisable through Update; see its doc comment.
func (s *Store) UpdateOrder(updateIndex uint16, orderID uint64, update Update) error {
	header, err := s.LoadHeader()
	if err != nil {
		return err
	}
	if updateIndex >= header.Total {
		return fmt.Errorf("%w: index=%d total=%d", ErrInvalidSlotIndex, updateIndex, header.Total)
	}

	order, err := s.GetOrder(updateIndex)
	if err != nil {
		return err
	}
	if order.OrderID != orderID {
		return fmt.Errorf("%w: expected=%d actual=%d", ErrOrderIDMismatch, orderID, order.OrderID)
	}

	update.apply(&order)

	encoded, err := order.encode()
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	if err := s.db.Set(s.slotKey(updateIndex), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("write updated order: %w", err)
	}
	return nil
}

// Traverse walks the linked list starting at start (NoIndex meaning the
// head), invoking callback for each order until it returns false, limit
// orders have been processed (0 = unlimited), or the tail is reached.
func (s *Store) Traverse(start uint16, limit uint32, callback func(index uint16, order MarginOrder) (bool, error)) (TraversalResult, error) {
	header, err := s.LoadHeader()
	if err != nil {
		return TraversalResult{}, err
	}

	current := start
	if current == NoIndex {
		current = header.Head
	}
	if current == NoIndex {
		return TraversalResult{Processed: 0, Next: NoIndex, Done: true}, nil
	}

	var count uint32
	for {
		if current >= header.Total {
			return TraversalResult{}, fmt.Errorf("%w: index=%d", ErrTraversalInvalid, current)
		}
		order, err := s.GetOrder(current)
		if err != nil {
			return TraversalResult{}, err
		}

		keepGoing, err := callback(current, order)
		if err != nil {
			return TraversalResult{}, err
		}
		count++

		if !keepGoing {
			return TraversalResult{Processed: count, Next: order.NextOrder, Done: false}, nil
		}
		if limit > 0 && count >= limit {
			return TraversalResult{Processed: count, Next: order.NextOrder, Done: order.NextOrder == NoIndex}, nil
		}
		if order.NextOrder == NoIndex {
			return TraversalResult{Processed: count, Next: NoIndex, Done: true}, nil
		}
		current = order.NextOrder
	}
}

// GetInsertNeighbors reports the (prev, next) slot indices that would
// bound a new node inserted at insertPos (NoIndex meaning "at the head").
// Both are nil when the book is empty.
func (s *Store) GetInsertNeighbors(insertPos uint16) (prev, next *uint16, err error) {
	header, err := s.LoadHeader()
	if err != nil {
		return nil, nil, err
	}
	if header.Total == 0 {
		return nil, nil, nil
	}

	if insertPos == NoIndex {
		if header.Head == NoIndex {
			return nil, nil, fmt.Errorf("%w: head is NoIndex but total > 0", ErrInconsistentState)
		}
		head := header.Head
		return nil, &head, nil
	}

	if insertPos >= header.Total {
		return nil, nil, fmt.Errorf("%w: index=%d total=%d", ErrInvalidSlotIndex, insertPos, header.Total)
	}

	node, err := s.GetOrder(insertPos)
	if err != nil {
		return nil, nil, err
	}
	p := insertPos
	if node.NextOrder == NoIndex {
		return &p, nil, nil
	}
	n := node.NextOrder
	return &p, &n, nil
}
