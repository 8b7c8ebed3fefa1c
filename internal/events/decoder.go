package events

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/xerrors"
)

// Decoder turns the raw log lines of a single transaction into the events
// emitted by one target program, tracking the CPI call stack so that
// events logged from a cross-program invocation inside the target program
// are still captured.
type Decoder struct {
	ProgramID string
	Log       *zap.SugaredLogger
}

func NewDecoder(programID string, log *zap.SugaredLogger) *Decoder {
	return &Decoder{ProgramID: programID, Log: log}
}

// ParseEventsWithCallStack walks logs in order, maintaining a stack of
// invoked program ids. "Program data:" lines are only decoded while the
// target program id is anywhere in the current stack, so events logged by
// a CPI callee on behalf of the target program are still captured.
func (d *Decoder) ParseEventsWithCallStack(logs []string, signature string, slot uint64) ([]Event, error) {
	var out []Event
	var stack []string
	inTarget := false

	for _, line := range logs {
		switch {
		case strings.Contains(line, " invoke ["):
			if pid, ok := extractProgramID(line); ok {
				stack = append(stack, pid)
				if pid == d.ProgramID {
					inTarget = true
				}
			}
		case strings.Contains(line, " success") || strings.Contains(line, " failed"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			inTarget = false
			for _, p := range stack {
				if p == d.ProgramID {
					inTarget = true
					break
				}
			}
		}

		if !inTarget || !strings.HasPrefix(line, "Program data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "Program data:"))
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			if d.Log != nil {
				d.Log.Warnw("event_base64_decode_failed", "err", err)
			}
			continue
		}

		ev, err := d.decodeEvent(raw, signature, slot)
		if err != nil {
			if d.Log != nil {
				d.Log.Warnw("event_decode_failed", "err", err)
			}
			continue
		}
		if ev != nil {
			out = append(out, ev)
		}
	}

	return out, nil
}

// extractProgramID parses "Program <pubkey> invoke [depth]".
func extractProgramID(line string) (string, bool) {
	const marker = "Program "
	start := strings.Index(line, marker)
	if start < 0 {
		return "", false
	}
	rest := line[start+len(marker):]
	end := strings.Index(rest, " invoke")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func (d *Decoder) decodeEvent(data []byte, signature string, slot uint64) (Event, error) {
	if len(data) < 8 {
		return nil, nil
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	body := data[8:]
	ts := time.Now().UTC()

	switch disc {
	case TokenCreatedDiscriminator:
		return decodeTokenCreated(body, signature, slot, ts)
	case BuySellDiscriminator:
		return decodeBuySell(body, signature, slot, ts)
	case LongShortDiscriminator:
		return decodeLongShort(body, signature, slot, ts)
	case FullCloseDiscriminator:
		return decodeFullClose(body, signature, slot, ts)
	case PartialCloseDiscriminator:
		return decodePartialClose(body, signature, slot, ts)
	case MilestoneDiscountDiscriminator:
		return decodeMilestoneDiscount(body, signature, slot, ts)
	default:
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnknownDiscriminator, disc)
	}
}

func decodeTokenCreated(body []byte, sig string, slot uint64, ts time.Time) (Event, error) {
	r := newReader(body)
	var e TokenCreated
	var err error
	if e.Payer, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.MintAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.CurveAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.PoolTokenAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.PoolSolAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.FeeRecipient, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.BaseFeeRecipient, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.ParamsAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.SwapFee, err = r.u16(); err != nil {
		return nil, err
	}
	if e.BorrowFee, err = r.u16(); err != nil {
		return nil, err
	}
	if e.FeeDiscountFlag, err = r.u8(); err != nil {
		return nil, err
	}
	if e.Name, err = r.string(); err != nil {
		return nil, err
	}
	if e.Symbol, err = r.string(); err != nil {
		return nil, err
	}
	if e.URI, err = r.string(); err != nil {
		return nil, err
	}
	if e.UpOrderbook, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.DownOrderbook, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.LatestPrice, err = r.u128(); err != nil {
		return nil, err
	}
	e.Timestamp, e.Signature, e.Slot = ts, sig, slot
	return e, nil
}

func decodeBuySell(body []byte, sig string, slot uint64, ts time.Time) (Event, error) {
	r := newReader(body)
	var e BuySell
	var err error
	if e.Payer, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.MintAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.IsBuy, err = r.bool(); err != nil {
		return nil, err
	}
	if e.TokenAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.SolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.LatestPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.LiquidateIndices, err = r.u16Vec(); err != nil {
		return nil, err
	}
	e.Timestamp, e.Signature, e.Slot = ts, sig, slot
	return e, nil
}

func decodeLongShort(body []byte, sig string, slot uint64, ts time.Time) (Event, error) {
	r := newReader(body)
	var e LongShort
	var err error
	if e.Payer, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.MintAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.OrderID, err = r.u64(); err != nil {
		return nil, err
	}
	if e.OrderIndex, err = r.u16(); err != nil {
		return nil, err
	}
	if e.LatestPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.OpenPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.OrderType, err = r.u8(); err != nil {
		return nil, err
	}
	if e.LockLPStartPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.LockLPEndPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.LockLPSolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.LockLPTokenAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.StartTime, err = r.u32(); err != nil {
		return nil, err
	}
	if e.EndTime, err = r.u32(); err != nil {
		return nil, err
	}
	if e.MarginSolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.BorrowAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.PositionAssetAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.BorrowFee, err = r.u16(); err != nil {
		return nil, err
	}
	if e.LiquidateIndices, err = r.u16Vec(); err != nil {
		return nil, err
	}
	e.Timestamp, e.Signature, e.Slot = ts, sig, slot
	return e, nil
}

func decodeFullClose(body []byte, sig string, slot uint64, ts time.Time) (Event, error) {
	r := newReader(body)
	var e FullClose
	var err error
	if e.Payer, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.UserSolAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.MintAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.IsCloseLong, err = r.bool(); err != nil {
		return nil, err
	}
	if e.FinalTokenAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.FinalSolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.UserCloseProfit, err = r.u64(); err != nil {
		return nil, err
	}
	if e.LatestPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.OrderID, err = r.u64(); err != nil {
		return nil, err
	}
	if e.OrderIndex, err = r.u16(); err != nil {
		return nil, err
	}
	if e.LiquidateIndices, err = r.u16Vec(); err != nil {
		return nil, err
	}
	e.Timestamp, e.Signature, e.Slot = ts, sig, slot
	return e, nil
}

func decodePartialClose(body []byte, sig string, slot uint64, ts time.Time) (Event, error) {
	r := newReader(body)
	var e PartialClose
	var err error
	if e.Payer, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.UserSolAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.MintAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.IsCloseLong, err = r.bool(); err != nil {
		return nil, err
	}
	if e.FinalTokenAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.FinalSolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.UserCloseProfit, err = r.u64(); err != nil {
		return nil, err
	}
	if e.LatestPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.OrderID, err = r.u64(); err != nil {
		return nil, err
	}
	if e.OrderIndex, err = r.u16(); err != nil {
		return nil, err
	}
	if e.OrderType, err = r.u8(); err != nil {
		return nil, err
	}
	if e.User, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.LockLPStartPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.LockLPEndPrice, err = r.u128(); err != nil {
		return nil, err
	}
	if e.LockLPSolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.LockLPTokenAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.StartTime, err = r.u32(); err != nil {
		return nil, err
	}
	if e.EndTime, err = r.u32(); err != nil {
		return nil, err
	}
	if e.MarginSolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.BorrowAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.PositionAssetAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.BorrowFee, err = r.u16(); err != nil {
		return nil, err
	}
	if e.RealizedSolAmount, err = r.u64(); err != nil {
		return nil, err
	}
	if e.LiquidateIndices, err = r.u16Vec(); err != nil {
		return nil, err
	}
	e.Timestamp, e.Signature, e.Slot = ts, sig, slot
	return e, nil
}

func decodeMilestoneDiscount(body []byte, sig string, slot uint64, ts time.Time) (Event, error) {
	r := newReader(body)
	var e MilestoneDiscount
	var err error
	if e.Payer, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.MintAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.CurveAccount, err = r.pubkey(); err != nil {
		return nil, err
	}
	if e.SwapFee, err = r.u16(); err != nil {
		return nil, err
	}
	if e.BorrowFee, err = r.u16(); err != nil {
		return nil, err
	}
	if e.FeeDiscountFlag, err = r.u8(); err != nil {
		return nil, err
	}
	e.Timestamp, e.Signature, e.Slot = ts, sig, slot
	return e, nil
}
