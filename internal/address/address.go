// Package address validates the base58 account/mint/signature strings
// the origin chain uses as identifiers. Unlike go-ethereum's common.Address
// (a fixed 20-byte hex type carried by the host repo), these identifiers
// are variable-length base58 text, so they're kept as plain strings here
// and only checked for well-formedness at the decode boundary.
package address

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// MinLen/MaxLen bound a plausible base58-encoded pubkey or signature.
const (
	MinLen = 32
	MaxLen = 88
)

// Validate checks that s decodes as base58 and has a plausible byte length
// for a pubkey (32 bytes) or a signature (64 bytes).
func Validate(s string) error {
	if len(s) < MinLen || len(s) > MaxLen {
		return fmt.Errorf("address %q: implausible length %d", s, len(s))
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("address %q: not valid base58: %w", s, err)
	}
	if len(decoded) != 32 && len(decoded) != 64 {
		return fmt.Errorf("address %q: decoded length %d is neither a pubkey nor a signature", s, len(decoded))
	}
	return nil
}

// IsPubkey reports whether s plausibly decodes to a 32-byte pubkey.
func IsPubkey(s string) bool {
	decoded, err := base58.Decode(s)
	return err == nil && len(decoded) == 32
}
