// Package numeric represents the 128-bit unsigned integers the origin
// chain uses for prices and token amounts. Go has no native u128; values
// are carried as arbitrary-precision decimals so they marshal to and from
// JSON as plain decimal strings, the same wire shape the original
// Rust service produced via serde_with::DisplayFromStr.
package numeric

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// U128Max is the largest value a little-endian 16-byte unsigned integer can hold.
var U128Max = func() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	return max.Sub(max, big.NewInt(1))
}()

// ParseU128 parses a base-10 string into a Decimal, matching the origin's
// u128 textual representation exactly (no sign, no exponent).
func ParseU128(s string) (decimal.Decimal, error) {
	for _, c := range s {
		if c < '0' || c > '9' {
			return decimal.Decimal{}, fmt.Errorf("parse u128 %q: not a plain base-10 integer", s)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse u128 %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("parse u128 %q: negative value", s)
	}
	return d, nil
}

// MustU128 is ParseU128 that panics on error; for tests and constants only.
func MustU128(s string) decimal.Decimal {
	d, err := ParseU128(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatU128 renders a Decimal back to the plain decimal string the wire
// format and the HTTP/JSON surfaces expect.
func FormatU128(d decimal.Decimal) string {
	return d.String()
}

// FromLittleEndianBytes decodes a 16-byte little-endian unsigned integer,
// the wire layout Borsh uses for u128 fields.
func FromLittleEndianBytes(b []byte) decimal.Decimal {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(be), 0)
}

// ToLittleEndianBytes encodes a non-negative integral Decimal into a
// 16-byte little-endian buffer, the inverse of FromLittleEndianBytes.
func ToLittleEndianBytes(d decimal.Decimal) [16]byte {
	var out [16]byte
	be := d.BigInt().Bytes()
	for i, v := range be {
		out[len(be)-1-i] = v
	}
	return out
}
