package registry

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
)

func prefixUpperBound(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xff)
}

// mintFromIndexKey extracts the trailing mint segment from one of this
// package's three-or-four-part secondary index keys.
func mintFromIndexKey(key []byte) (string, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) < 3 {
		return "", fmt.Errorf("malformed registry index key %q", key)
	}
	return parts[len(parts)-1], nil
}

func (s *Store) scanMints(lower, upper []byte, limit int) ([]*TokenDetail, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("open registry index iterator: %w", err)
	}
	defer iter.Close()

	var out []*TokenDetail
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		mint, err := mintFromIndexKey(iter.Key())
		if err != nil {
			return nil, err
		}
		detail, err := s.GetByMint(mint)
		if err != nil {
			return nil, err
		}
		if detail != nil {
			out = append(out, detail)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate registry index: %w", err)
	}
	return out, nil
}

// GetBySymbol returns up to limit tokens created with the given symbol
// (case-insensitive), ordered by mint address. limit of 0 means unbounded.
func (s *Store) GetBySymbol(symbol string, limit int) ([]*TokenDetail, error) {
	prefix := tokenSymbolPrefix(strings.ToUpper(symbol))
	return s.scanMints(prefix, prefixUpperBound(prefix), limit)
}

// GetLatest returns up to limit tokens ordered by creation time,
// newest first. beforeUnix, if non-nil, restricts the result to tokens
// created strictly before that Unix timestamp (for cursor-based paging).
func (s *Store) GetLatest(limit int, beforeUnix *int64) ([]*TokenDetail, error) {
	upper := []byte(tokenCreatedPrefix)
	if beforeUnix != nil {
		upper = tokenCreatedKey(*beforeUnix, "")
	} else {
		upper = prefixUpperBound(upper)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte(tokenCreatedPrefix), UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("open token_created iterator: %w", err)
	}
	defer iter.Close()

	var out []*TokenDetail
	for iter.Last(); iter.Valid(); iter.Prev() {
		if limit > 0 && len(out) >= limit {
			break
		}
		mint, err := mintFromIndexKey(iter.Key())
		if err != nil {
			return nil, err
		}
		detail, err := s.GetByMint(mint)
		if err != nil {
			return nil, err
		}
		if detail != nil {
			out = append(out, detail)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate token_created: %w", err)
	}
	return out, nil
}

// GetBySlotRange returns every token created within [fromSlot, toSlot],
// inclusive.
func (s *Store) GetBySlotRange(fromSlot, toSlot uint64) ([]*TokenDetail, error) {
	if toSlot < fromSlot {
		return nil, nil
	}
	lower := []byte(tokenSlotPrefix + fmt.Sprintf("%010d:", fromSlot))
	upper := prefixUpperBound([]byte(tokenSlotPrefix + fmt.Sprintf("%010d:", toSlot)))
	return s.scanMints(lower, upper, 0)
}

// GetByPayer returns every token created by payer, oldest first.
func (s *Store) GetByPayer(payer string) ([]*TokenDetail, error) {
	prefix := tokenPayerPrefix(payer)
	return s.scanMints(prefix, prefixUpperBound(prefix), 0)
}

// BatchGet resolves a list of mints to their records, skipping any mint
// with no token record.
func (s *Store) BatchGet(mints []string) ([]*TokenDetail, error) {
	out := make([]*TokenDetail, 0, len(mints))
	for _, mint := range mints {
		detail, err := s.GetByMint(mint)
		if err != nil {
			return nil, err
		}
		if detail != nil {
			out = append(out, detail)
		}
	}
	return out, nil
}

// Count returns the total number of registered tokens.
func (s *Store) Count() (uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte("token:"), UpperBound: prefixUpperBound([]byte("token:"))})
	if err != nil {
		return 0, fmt.Errorf("open token iterator: %w", err)
	}
	defer iter.Close()

	var count uint64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterate token count: %w", err)
	}
	return count, nil
}
