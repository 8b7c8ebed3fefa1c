// Package orderbook implements the active order book engine: a
// doubly-linked list of margin orders laid out across fixed numeric slots
// in an embedded key-value store, one instance per (mint, direction) pair.
// Every order book is either the "up" (short) book or the "dn" (long)
// book for a given mint; liquidation traversal walks one or the other
// depending on which direction the price moved.
package orderbook

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Direction identifies which side of a mint's order book a manager
// operates on.
type Direction string

const (
	DirectionUp   Direction = "up" // short positions, liquidated on price increases
	DirectionDown Direction = "dn" // long positions, liquidated on price decreases
)

// OrderTypeForDirection mirrors the origin program's convention: the
// down/long book stores order_type 1, the up/short book stores order_type 2.
func OrderTypeForDirection(dir Direction) uint8 {
	if dir == DirectionUp {
		return 2
	}
	return 1
}

// DirectionForOrderType inverts OrderTypeForDirection: it tells a new
// LongShort order's own order_type field which book it belongs in.
func DirectionForOrderType(orderType uint8) Direction {
	if orderType == 2 {
		return DirectionUp
	}
	return DirectionDown
}

const (
	// CurrentHeaderVersion is stamped into every newly initialized header.
	CurrentHeaderVersion uint8 = 1

	// MaxCapacity is the largest number of live slots a single order book
	// may hold, bounded by the 16-bit slot index used throughout the key
	// schema and linked-list pointers.
	MaxCapacity uint32 = 65535

	// NoIndex is the sentinel used for "no neighbor"/"empty list" in the
	// head, tail, prev_order and next_order fields.
	NoIndex uint16 = 65535
)

// Header describes a single order book's linked-list bookkeeping: which
// slot is the head, which is the tail, how many slots are live, and one
// past the largest order_id seen (ids always come from upstream events,
// never from this counter).
type Header struct {
	Version        uint8  `json:"version"`
	OrderType      uint8  `json:"order_type"`
	Authority      string `json:"authority"`
	OrderIDCounter uint64 `json:"order_id_counter"`
	CreatedAt      uint32 `json:"created_at"`
	LastModified   uint32 `json:"last_modified"`
	TotalCapacity  uint32 `json:"total_capacity"`
	Head           uint16 `json:"head"`
	Tail           uint16 `json:"tail"`
	Total          uint16 `json:"total"`
}

// NewHeader builds the header of a freshly-initialized, empty order book.
func NewHeader(orderType uint8, authority string) Header {
	now := uint32(time.Now().Unix())
	return Header{
		Version:        CurrentHeaderVersion,
		OrderType:      orderType,
		Authority:      authority,
		OrderIDCounter: 0,
		CreatedAt:      now,
		LastModified:   now,
		TotalCapacity:  0,
		Head:           NoIndex,
		Tail:           NoIndex,
		Total:          0,
	}
}

func (h Header) encode() ([]byte, error) { return json.Marshal(h) }

func decodeHeader(data []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Header{}, err
	}
	return h, nil
}

// MarginOrder is one leveraged position resting in an order book slot.
// user, order_id, start_time, order_type, next_order and prev_order are
// system-managed and never appear in Update — every other field can be
// revised in place as the position's margin, borrow and lock-LP state
// change over its lifetime.
type MarginOrder struct {
	User string `json:"user"`

	LockLPStartPrice decimal.Decimal `json:"lock_lp_start_price"`
	LockLPEndPrice   decimal.Decimal `json:"lock_lp_end_price"`
	OpenPrice        decimal.Decimal `json:"open_price"`

	OrderID             uint64 `json:"order_id"`
	LockLPSolAmount     uint64 `json:"lock_lp_sol_amount"`
	LockLPTokenAmount   uint64 `json:"lock_lp_token_amount"`
	NextLPSolAmount     uint64 `json:"next_lp_sol_amount"`
	NextLPTokenAmount   uint64 `json:"next_lp_token_amount"`
	MarginInitSolAmount uint64 `json:"margin_init_sol_amount"`
	MarginSolAmount     uint64 `json:"margin_sol_amount"`
	BorrowAmount        uint64 `json:"borrow_amount"`
	PositionAssetAmount uint64 `json:"position_asset_amount"`
	RealizedSolAmount   uint64 `json:"realized_sol_amount"`

	Version   uint32 `json:"version"`
	StartTime uint32 `json:"start_time"`
	EndTime   uint32 `json:"end_time"`

	NextOrder uint16 `json:"next_order"`
	PrevOrder uint16 `json:"prev_order"`
	BorrowFee uint16 `json:"borrow_fee"`
	OrderType uint8  `json:"order_type"`
}

func (o MarginOrder) encode() ([]byte, error) { return json.Marshal(o) }

func decodeMarginOrder(data []byte) (MarginOrder, error) {
	var o MarginOrder
	if err := json.Unmarshal(data, &o); err != nil {
		return MarginOrder{}, err
	}
	return o, nil
}

// Update carries a sparse set of field revisions for UpdateOrder. Nil
// pointers leave the corresponding field untouched.
type Update struct {
	LockLPStartPrice *decimal.Decimal
	LockLPEndPrice   *decimal.Decimal
	OpenPrice        *decimal.Decimal

	LockLPSolAmount     *uint64
	LockLPTokenAmount   *uint64
	NextLPSolAmount     *uint64
	NextLPTokenAmount   *uint64
	MarginInitSolAmount *uint64
	MarginSolAmount     *uint64
	BorrowAmount        *uint64
	PositionAssetAmount *uint64
	RealizedSolAmount   *uint64

	EndTime   *uint32
	BorrowFee *uint16
}

func (u Update) apply(o *MarginOrder) {
	if u.LockLPStartPrice != nil {
		o.LockLPStartPrice = *u.LockLPStartPrice
	}
	if u.LockLPEndPrice != nil {
		o.LockLPEndPrice = *u.LockLPEndPrice
	}
	if u.OpenPrice != nil {
		o.OpenPrice = *u.OpenPrice
	}
	if u.LockLPSolAmount != nil {
		o.LockLPSolAmount = *u.LockLPSolAmount
	}
	if u.LockLPTokenAmount != nil {
		o.LockLPTokenAmount = *u.LockLPTokenAmount
	}
	if u.NextLPSolAmount != nil {
		o.NextLPSolAmount = *u.NextLPSolAmount
	}
	if u.NextLPTokenAmount != nil {
		o.NextLPTokenAmount = *u.NextLPTokenAmount
	}
	if u.MarginInitSolAmount != nil {
		o.MarginInitSolAmount = *u.MarginInitSolAmount
	}
	if u.MarginSolAmount != nil {
		o.MarginSolAmount = *u.MarginSolAmount
	}
	if u.BorrowAmount != nil {
		o.BorrowAmount = *u.BorrowAmount
	}
	if u.PositionAssetAmount != nil {
		o.PositionAssetAmount = *u.PositionAssetAmount
	}
	if u.BorrowFee != nil {
		o.BorrowFee = *u.BorrowFee
	}
	if u.RealizedSolAmount != nil {
		o.RealizedSolAmount = *u.RealizedSolAmount
	}
	if u.EndTime != nil {
		o.EndTime = *u.EndTime
	}
	o.Version++
}

// TraversalResult reports how far a Traverse call got.
type TraversalResult struct {
	Processed uint32
	Next      uint16 // NoIndex once the walk is exhausted
	Done      bool
}

// CloseReason classifies why a MarginOrder left the active book. The set
// is broader than the four names the data model first suggests: a close
// initiated by the position's own owner is distinguished from one a
// third party account triggered through the same instruction (FullClose
// carries an order_id and a user_sol_account, and either mismatching the
// resting order is what tells the two apart), and both are distinct from
// a forced liquidation the Liquidation Processor drove off a price-move
// event.
type CloseReason string

const (
	CloseReasonUserInitiated CloseReason = "user_initiated"
	CloseReasonThirdParty    CloseReason = "third_party"
	CloseReasonForced        CloseReason = "forced"
	CloseReasonExpired       CloseReason = "expired"
	CloseReasonMarginCall    CloseReason = "margin_call"
)

// ClosedOrderRecord snapshots a MarginOrder at the moment it left the
// active book, alongside the facts of its closure.
type ClosedOrderRecord struct {
	Order MarginOrder `json:"order"`

	CloseTimestamp uint32          `json:"close_timestamp"`
	ClosePrice     decimal.Decimal `json:"close_price"`
	CloseReason    CloseReason     `json:"close_reason"`

	FinalPnlSol       decimal.Decimal `json:"final_pnl_sol"` // signed
	TotalBorrowFeeSol decimal.Decimal `json:"total_borrow_fee_sol"`
	PositionDuration  uint32          `json:"position_duration_sec"`
}

func (r ClosedOrderRecord) encode() ([]byte, error) { return json.Marshal(r) }

func decodeClosedOrderRecord(data []byte) (ClosedOrderRecord, error) {
	var r ClosedOrderRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return ClosedOrderRecord{}, err
	}
	return r, nil
}
