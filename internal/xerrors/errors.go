// Package xerrors holds sentinel errors shared across indexer components.
package xerrors

import "errors"

var (
	// ErrNotFound is returned by store lookups that find nothing at a key.
	ErrNotFound = errors.New("not found")

	// ErrOrderBookFull means a header's active count reached total_capacity.
	ErrOrderBookFull = errors.New("order book at capacity")

	// ErrInvalidIndex means a liquidation or update referenced a slot index
	// outside [0, active length) — treated as a fatal, stop-the-batch error.
	ErrInvalidIndex = errors.New("slot index out of range")

	// ErrUnknownDiscriminator means the first 8 bytes of an event payload
	// didn't match any known event discriminator.
	ErrUnknownDiscriminator = errors.New("unknown event discriminator")

	// ErrShortBuffer means a borsh decode ran out of bytes mid-field.
	ErrShortBuffer = errors.New("buffer too short for borsh field")

	// ErrInterval means a kline query named an interval other than s1/s30/m5.
	ErrInterval = errors.New("invalid kline interval")
)
