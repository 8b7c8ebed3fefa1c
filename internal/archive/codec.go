package archive

import (
	"encoding/json"
	"fmt"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

// envelope carries a concrete event's type code alongside its JSON so a
// stored row can be decoded back into the right Go type — events.Event is
// an interface, and json.Marshal/Unmarshal on an interface value loses the
// concrete type without this discriminator.
type envelope struct {
	Type TypeCode        `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TypeCode mirrors events.TypeCode so callers of this package never need
// to import internal/events just to name an event kind in a query.
type TypeCode = events.TypeCode

func encodeEvent(ev events.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	return json.Marshal(envelope{Type: ev.TypeCode(), Data: data})
}

func decodeEvent(raw []byte) (events.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	switch env.Type {
	case events.TypeTokenCreated:
		var e events.TokenCreated
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case events.TypeBuySell:
		var e events.BuySell
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case events.TypeLongShort:
		var e events.LongShort
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case events.TypeFullClose:
		var e events.FullClose
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case events.TypePartialClose:
		var e events.PartialClose
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case events.TypeMilestoneDiscount:
		var e events.MilestoneDiscount
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case events.TypeLiquidate:
		var e events.Liquidate
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("archive: unknown event type code %q", env.Type)
	}
}

// userOf picks the account a row's idx_user index is keyed on. For a full
// or partial close, the transaction's fee payer may be a liquidator bot
// rather than the position owner, so those two carriers index on
// user_sol_account instead of payer.
func userOf(ev events.Event) (string, bool) {
	switch e := ev.(type) {
	case events.TokenCreated:
		return e.Payer, true
	case events.BuySell:
		return e.Payer, true
	case events.LongShort:
		return e.Payer, true
	case events.FullClose:
		return e.UserSolAccount, true
	case events.PartialClose:
		return e.UserSolAccount, true
	case events.MilestoneDiscount:
		return e.Payer, true
	case events.Liquidate:
		return e.UserSolAccount, true
	default:
		return "", false
	}
}
