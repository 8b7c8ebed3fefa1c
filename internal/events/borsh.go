package events

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperlicked-indexer/internal/numeric"
	"github.com/uhyunpark/hyperlicked-indexer/internal/xerrors"
)

// reader decodes the Borsh wire format the origin program uses for its
// event payloads: little-endian fixed-width integers, length-prefixed
// (u32) UTF-8 strings, length-prefixed (u32) vectors, and raw fixed-size
// arrays for pubkeys. No general-purpose Borsh library exists anywhere in
// the retrieval pack, so this reader is hand-rolled against the documented
// rules rather than pulled in from an unrelated ecosystem package.
type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return xerrors.ErrShortBuffer
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) bool() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) u128() (decimal.Decimal, error) {
	if err := r.need(16); err != nil {
		return decimal.Decimal{}, err
	}
	v := numeric.FromLittleEndianBytes(r.buf[r.pos : r.pos+16])
	r.pos += 16
	return v, nil
}

// pubkey reads a fixed 32-byte array and renders it as base58, the origin
// chain's textual pubkey format.
func (r *reader) pubkey() (string, error) {
	if err := r.need(32); err != nil {
		return "", err
	}
	v := base58.Encode(r.buf[r.pos : r.pos+32])
	r.pos += 32
	return v, nil
}

func (r *reader) string() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	v := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return v, nil
}

func (r *reader) u16Vec() ([]uint16, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := r.u16()
		if err != nil {
			return nil, fmt.Errorf("u16 vec element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
