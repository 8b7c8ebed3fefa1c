// Package events decodes the Borsh-encoded program events emitted over the
// origin chain's log-subscription WebSocket feed, and exposes them as a
// single discriminated Event interface for the rest of the indexer.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TypeCode returns the two-letter code used to key the event archive's
// composite indexes, matching the original storage layer's convention.
type TypeCode string

const (
	TypeTokenCreated      TypeCode = "tc"
	TypeBuySell           TypeCode = "bs"
	TypeLongShort         TypeCode = "ls"
	TypeFullClose         TypeCode = "fc"
	TypePartialClose      TypeCode = "pc"
	TypeMilestoneDiscount TypeCode = "md"
	TypeLiquidate         TypeCode = "lq"
)

// Event is implemented by every decoded event and the server-synthesized
// Liquidate notification. It exposes just enough to drive routing,
// archiving, and deduplication without a type switch at every call site.
type Event interface {
	TypeCode() TypeCode
	EventMint() string
	EventSignature() string
	EventSlot() uint64
	EventTimestamp() time.Time
}

type TokenCreated struct {
	Payer             string
	MintAccount       string
	CurveAccount      string
	PoolTokenAccount  string
	PoolSolAccount    string
	FeeRecipient      string
	BaseFeeRecipient  string
	ParamsAccount     string
	SwapFee           uint16
	BorrowFee         uint16
	FeeDiscountFlag   uint8
	Name              string
	Symbol            string
	URI               string
	UpOrderbook       string
	DownOrderbook     string
	LatestPrice       decimal.Decimal
	Timestamp         time.Time
	Signature         string
	Slot              uint64
}

func (e TokenCreated) TypeCode() TypeCode          { return TypeTokenCreated }
func (e TokenCreated) EventMint() string           { return e.MintAccount }
func (e TokenCreated) EventSignature() string      { return e.Signature }
func (e TokenCreated) EventSlot() uint64           { return e.Slot }
func (e TokenCreated) EventTimestamp() time.Time   { return e.Timestamp }

type BuySell struct {
	Payer             string
	MintAccount       string
	IsBuy             bool
	TokenAmount       uint64
	SolAmount         uint64
	LatestPrice       decimal.Decimal
	LiquidateIndices  []uint16
	Timestamp         time.Time
	Signature         string
	Slot              uint64
}

func (e BuySell) TypeCode() TypeCode        { return TypeBuySell }
func (e BuySell) EventMint() string         { return e.MintAccount }
func (e BuySell) EventSignature() string    { return e.Signature }
func (e BuySell) EventSlot() uint64         { return e.Slot }
func (e BuySell) EventTimestamp() time.Time { return e.Timestamp }

type LongShort struct {
	Payer               string
	MintAccount         string
	OrderID             uint64
	OrderIndex          uint16
	LatestPrice         decimal.Decimal
	OpenPrice           decimal.Decimal
	OrderType           uint8
	LockLPStartPrice    decimal.Decimal
	LockLPEndPrice      decimal.Decimal
	LockLPSolAmount     uint64
	LockLPTokenAmount   uint64
	StartTime           uint32
	EndTime             uint32
	MarginSolAmount     uint64
	BorrowAmount        uint64
	PositionAssetAmount uint64
	BorrowFee           uint16
	LiquidateIndices    []uint16
	Timestamp           time.Time
	Signature           string
	Slot                uint64
}

func (e LongShort) TypeCode() TypeCode        { return TypeLongShort }
func (e LongShort) EventMint() string         { return e.MintAccount }
func (e LongShort) EventSignature() string    { return e.Signature }
func (e LongShort) EventSlot() uint64         { return e.Slot }
func (e LongShort) EventTimestamp() time.Time { return e.Timestamp }

type FullClose struct {
	Payer             string
	UserSolAccount    string
	MintAccount       string
	IsCloseLong       bool
	FinalTokenAmount  uint64
	FinalSolAmount    uint64
	UserCloseProfit   uint64
	LatestPrice       decimal.Decimal
	OrderID           uint64
	OrderIndex        uint16
	LiquidateIndices  []uint16
	Timestamp         time.Time
	Signature         string
	Slot              uint64
}

func (e FullClose) TypeCode() TypeCode        { return TypeFullClose }
func (e FullClose) EventMint() string         { return e.MintAccount }
func (e FullClose) EventSignature() string    { return e.Signature }
func (e FullClose) EventSlot() uint64         { return e.Slot }
func (e FullClose) EventTimestamp() time.Time { return e.Timestamp }

type PartialClose struct {
	Payer               string
	UserSolAccount      string
	MintAccount         string
	IsCloseLong         bool
	FinalTokenAmount    uint64
	FinalSolAmount      uint64
	UserCloseProfit     uint64
	LatestPrice         decimal.Decimal
	OrderID             uint64
	OrderIndex          uint16
	OrderType           uint8
	User                string
	LockLPStartPrice    decimal.Decimal
	LockLPEndPrice      decimal.Decimal
	LockLPSolAmount     uint64
	LockLPTokenAmount   uint64
	StartTime           uint32
	EndTime             uint32
	MarginSolAmount     uint64
	BorrowAmount        uint64
	PositionAssetAmount uint64
	BorrowFee           uint16
	RealizedSolAmount   uint64
	LiquidateIndices    []uint16
	Timestamp           time.Time
	Signature           string
	Slot                uint64
}

func (e PartialClose) TypeCode() TypeCode        { return TypePartialClose }
func (e PartialClose) EventMint() string         { return e.MintAccount }
func (e PartialClose) EventSignature() string    { return e.Signature }
func (e PartialClose) EventSlot() uint64         { return e.Slot }
func (e PartialClose) EventTimestamp() time.Time { return e.Timestamp }

type MilestoneDiscount struct {
	Payer           string
	MintAccount     string
	CurveAccount    string
	SwapFee         uint16
	BorrowFee       uint16
	FeeDiscountFlag uint8
	Timestamp       time.Time
	Signature       string
	Slot            uint64
}

func (e MilestoneDiscount) TypeCode() TypeCode        { return TypeMilestoneDiscount }
func (e MilestoneDiscount) EventMint() string         { return e.MintAccount }
func (e MilestoneDiscount) EventSignature() string    { return e.Signature }
func (e MilestoneDiscount) EventSlot() uint64         { return e.Slot }
func (e MilestoneDiscount) EventTimestamp() time.Time { return e.Timestamp }

// Liquidate is synthesized by the liquidation processor, not decoded from
// chain logs — it carries no signature of its own beyond the triggering
// transaction's, recorded in Signature.
type Liquidate struct {
	Payer            string
	UserSolAccount   string
	MintAccount      string
	IsCloseLong      bool
	FinalTokenAmount uint64
	FinalSolAmount   uint64
	OrderIndex       uint16
	Timestamp        time.Time
	Signature        string
	Slot             uint64
}

func (e Liquidate) TypeCode() TypeCode        { return TypeLiquidate }
func (e Liquidate) EventMint() string         { return e.MintAccount }
func (e Liquidate) EventSignature() string    { return e.Signature }
func (e Liquidate) EventSlot() uint64         { return e.Slot }
func (e Liquidate) EventTimestamp() time.Time { return e.Timestamp }

// LatestPriceOf returns the latest_price of a trade event (BuySell,
// LongShort, FullClose, PartialClose) and false for every other type,
// TokenCreated's initial price included — used to decide which events
// feed the candle aggregator.
func LatestPriceOf(e Event) (decimal.Decimal, bool) {
	switch ev := e.(type) {
	case BuySell:
		return ev.LatestPrice, true
	case LongShort:
		return ev.LatestPrice, true
	case FullClose:
		return ev.LatestPrice, true
	case PartialClose:
		return ev.LatestPrice, true
	default:
		return decimal.Decimal{}, false
	}
}
