package orderbook

import "errors"

var (
	ErrAlreadyExists     = errors.New("orderbook: already initialized")
	ErrNotInitialized    = errors.New("orderbook: not initialized")
	ErrInvalidDirection  = errors.New("orderbook: invalid direction")
	ErrInvalidSlotIndex  = errors.New("orderbook: invalid slot index")
	ErrOrderNotFound     = errors.New("orderbook: order not found at slot")
	ErrOrderIDNotFound   = errors.New("orderbook: order id not mapped to a slot")
	ErrOrderIDMismatch   = errors.New("orderbook: order id mismatch at slot")
	ErrInvalidOrderID    = errors.New("orderbook: order_id must be > 0 and not already present")
	ErrExceedsCapacity   = errors.New("orderbook: exceeds max capacity")
	ErrEmpty             = errors.New("orderbook: empty")
	ErrTraversalInvalid  = errors.New("orderbook: traversal hit an out-of-range index")
	ErrInconsistentState = errors.New("orderbook: inconsistent linked-list state")
)
