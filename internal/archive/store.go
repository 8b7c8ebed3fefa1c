// Package archive is the event archive: an append-only, queryable record
// of every decoded event, indexed by mint, by user, by signature, and by
// slot. Grounded on the original source's EventStorage.
package archive

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

// sigRef is one entry of the value stored at sig_map:{signature}: enough
// to locate the full event row without re-deriving its idx.
type sigRef struct {
	Slot     uint64          `json:"slot"`
	Mint     string          `json:"mint"`
	TypeCode events.TypeCode `json:"type"`
	Idx      uint32          `json:"idx"`
}

// eventRef is one entry of the value stored at slot_batch:{slot}.
type eventRef struct {
	Mint      string          `json:"mint"`
	Signature string          `json:"signature"`
	TypeCode  events.TypeCode `json:"type"`
	Idx       uint32          `json:"idx"`
}

type Store struct {
	db *pebble.DB
}

func New(db *pebble.DB) *Store {
	return &Store{db: db}
}

// StoreEvents writes every event decoded from one transaction signature as
// a single atomic batch: the primary event row plus its idx_mint and
// idx_user secondary index entries, the signature's sig_map entry, and a
// read-modify-write of the slot's slot_batch entry. idx is a
// per-signature, per-type sequence starting at 1, matching the upstream
// extract_event_info/store_events contract.
func (s *Store) StoreEvents(signature string, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	sig8 := sig8(signature)
	typeSeq := make(map[events.TypeCode]uint32, len(evs))

	var sigRefs []sigRef
	slotRefs := make(map[uint64][]eventRef)

	for _, ev := range evs {
		typeSeq[ev.TypeCode()]++
		idx := typeSeq[ev.TypeCode()]

		encoded, err := encodeEvent(ev)
		if err != nil {
			return fmt.Errorf("encode event type=%s signature=%s: %w", ev.TypeCode(), signature, err)
		}

		mint := ev.EventMint()
		slot := ev.EventSlot()

		if err := batch.Set(eventKey(slot, mint, sig8, string(ev.TypeCode()), idx), encoded, nil); err != nil {
			return err
		}
		if err := batch.Set(idxMintKey(mint, slot, sig8, string(ev.TypeCode()), idx), nil, nil); err != nil {
			return err
		}
		if user, ok := userOf(ev); ok {
			if err := batch.Set(idxUserKey(user, slot, mint, sig8, string(ev.TypeCode()), idx), nil, nil); err != nil {
				return err
			}
		}

		sigRefs = append(sigRefs, sigRef{Slot: slot, Mint: mint, TypeCode: ev.TypeCode(), Idx: idx})
		slotRefs[slot] = append(slotRefs[slot], eventRef{Mint: mint, Signature: signature, TypeCode: ev.TypeCode(), Idx: idx})
	}

	sigEncoded, err := encodeSigRefs(sigRefs)
	if err != nil {
		return fmt.Errorf("encode sig_map entry for signature=%s: %w", signature, err)
	}
	if err := batch.Set(sigMapKey(signature), sigEncoded, nil); err != nil {
		return err
	}

	for slot, refs := range slotRefs {
		if err := s.updateSlotBatch(batch, slot, refs); err != nil {
			return fmt.Errorf("update slot_batch for slot=%d: %w", slot, err)
		}
	}

	return s.db.Apply(batch, pebble.Sync)
}

// updateSlotBatch appends refs to the existing slot_batch entry for slot,
// if any, rather than overwriting it — a transaction's events share a
// slot with every other transaction landed in the same block.
func (s *Store) updateSlotBatch(batch *pebble.Batch, slot uint64, refs []eventRef) error {
	key := slotBatchKey(slot)

	existing, closer, err := s.db.Get(key)
	var current []eventRef
	if err == nil {
		current, err = decodeEventRefs(existing)
		closeErr := closer.Close()
		if err != nil {
			return fmt.Errorf("decode existing slot_batch: %w", err)
		}
		if closeErr != nil {
			return closeErr
		}
	} else if err != pebble.ErrNotFound {
		return fmt.Errorf("read existing slot_batch: %w", err)
	}

	current = append(current, refs...)
	encoded, err := encodeEventRefs(current)
	if err != nil {
		return fmt.Errorf("encode slot_batch: %w", err)
	}
	return batch.Set(key, encoded, nil)
}

func (s *Store) newSnapshotIter(lower, upper []byte) (*pebble.Iterator, func(), error) {
	snap := s.db.NewSnapshot()
	iter, err := snap.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		snap.Close()
		return nil, nil, fmt.Errorf("open snapshot iterator: %w", err)
	}
	return iter, func() { iter.Close(); snap.Close() }, nil
}

func prefixUpperBound(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xff)
}

// eventAtKey fetches and decodes the primary event row sig_map/idx_*
// entries point at.
func (s *Store) eventAtKey(key []byte) (events.Event, error) {
	value, closer, err := s.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("get event row %s: %w", key, err)
	}
	defer closer.Close()
	return decodeEvent(value)
}

// QueryByMint returns every archived event for mint, oldest first,
// reading through a snapshot so a concurrent write cannot tear the scan.
func (s *Store) QueryByMint(mint string) ([]events.Event, error) {
	page, err := s.QueryByMintPaginated(mint, 1, 0)
	if err != nil {
		return nil, err
	}
	return page.Events, nil
}

// QueryByMintPaginated is QueryByMint with page/pageSize applied over the
// idx_mint secondary index. pageSize of 0 returns every match on page 1.
func (s *Store) QueryByMintPaginated(mint string, page, pageSize uint32) (PaginatedEvents, error) {
	prefix := idxMintPrefix(mint)
	return s.scanIndexPaginated(prefix, page, pageSize, func(key []byte) ([]byte, error) {
		return eventKeyFromIdxMintKey(key, mint)
	})
}

// QueryByUser returns every archived event indexed under user, optionally
// filtered to one mint, oldest first. The mint filter is applied by
// parsing the mint segment back out of each idx_user key after the scan,
// not by folding mint into the scan prefix — idx_user orders by slot
// ahead of mint, so a mint-first prefix can never match a real key.
func (s *Store) QueryByUser(user string, mint *string) ([]events.Event, error) {
	page, err := s.QueryByUserPaginated(user, mint, 1, 0)
	if err != nil {
		return nil, err
	}
	return page.Events, nil
}

// QueryByUserPaginated is QueryByUser with page/pageSize applied.
func (s *Store) QueryByUserPaginated(user string, mint *string, page, pageSize uint32) (PaginatedEvents, error) {
	prefix := idxUserPrefix(user)
	return s.scanIndexPaginated(prefix, page, pageSize, func(key []byte) ([]byte, error) {
		return eventKeyFromIdxUserKey(key, mint)
	})
}

// QueryBySignature returns every event decoded from one transaction
// signature, in the order they were emitted.
func (s *Store) QueryBySignature(signature string) ([]events.Event, error) {
	value, closer, err := s.db.Get(sigMapKey(signature))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sig_map for signature=%s: %w", signature, err)
	}
	refs, decodeErr := decodeSigRefs(value)
	closer.Close()
	if decodeErr != nil {
		return nil, fmt.Errorf("decode sig_map for signature=%s: %w", signature, decodeErr)
	}

	sig8 := sig8(signature)
	out := make([]events.Event, 0, len(refs))
	for _, ref := range refs {
		key := eventKey(ref.Slot, ref.Mint, sig8, string(ref.TypeCode), ref.Idx)
		ev, err := s.eventAtKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// QueryBySlot returns every event that landed in slot, across every
// signature and mint.
func (s *Store) QueryBySlot(slot uint64) ([]events.Event, error) {
	value, closer, err := s.db.Get(slotBatchKey(slot))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot_batch for slot=%d: %w", slot, err)
	}
	refs, decodeErr := decodeEventRefs(value)
	closer.Close()
	if decodeErr != nil {
		return nil, fmt.Errorf("decode slot_batch for slot=%d: %w", slot, decodeErr)
	}

	out := make([]events.Event, 0, len(refs))
	for _, ref := range refs {
		key := eventKey(slot, ref.Mint, sig8(ref.Signature), string(ref.TypeCode), ref.Idx)
		ev, err := s.eventAtKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// QueryBySlotRange returns every event landing in [fromSlot, toSlot],
// inclusive, ordered by slot then by within-slot arrival.
func (s *Store) QueryBySlotRange(fromSlot, toSlot uint64) ([]events.Event, error) {
	if toSlot < fromSlot {
		return nil, nil
	}

	lower := slotBatchKey(fromSlot)
	upper := prefixUpperBound(slotBatchKey(toSlot))
	iter, closeFn, err := s.newSnapshotIter(lower, upper)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var out []events.Event
	for iter.First(); iter.Valid(); iter.Next() {
		refs, err := decodeEventRefs(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode slot_batch: %w", err)
		}
		slot, err := parseSlotBatchKey(iter.Key())
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			key := eventKey(slot, ref.Mint, sig8(ref.Signature), string(ref.TypeCode), ref.Idx)
			ev, err := s.eventAtKey(key)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate slot range: %w", err)
	}
	return out, nil
}

// PaginatedEvents is the result shape for the archive's paginated
// queries: the page's events, plus enough bookkeeping for a caller to
// render pagination controls. Total is computed by counting every
// matching index key, not just the ones on the requested page.
type PaginatedEvents struct {
	Events     []events.Event `json:"events"`
	Total      uint64         `json:"total"`
	Page       uint32         `json:"page"`
	PageSize   uint32         `json:"page_size"`
	TotalPages uint32         `json:"total_pages"`
}

// scanIndexPaginated walks every key under prefix through a snapshot,
// applying toEventKey to translate each matching index key into the
// primary event row's key (returning nil, nil to skip a key that fails a
// caller-side filter, e.g. a mint mismatch), then slices the result to
// one page.
func (s *Store) scanIndexPaginated(prefix []byte, page, pageSize uint32, toEventKey func(indexKey []byte) ([]byte, error)) (PaginatedEvents, error) {
	if page == 0 {
		page = 1
	}

	iter, closeFn, err := s.newSnapshotIter(prefix, prefixUpperBound(prefix))
	if err != nil {
		return PaginatedEvents{}, err
	}
	defer closeFn()

	var matched [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		eventKey, err := toEventKey(iter.Key())
		if err != nil {
			return PaginatedEvents{}, err
		}
		if eventKey == nil {
			continue
		}
		matched = append(matched, append([]byte(nil), eventKey...))
	}
	if err := iter.Error(); err != nil {
		return PaginatedEvents{}, fmt.Errorf("iterate index: %w", err)
	}

	total := uint64(len(matched))
	effectivePageSize := pageSize
	if effectivePageSize == 0 {
		effectivePageSize = uint32(total)
		if effectivePageSize == 0 {
			effectivePageSize = 1
		}
	}

	totalPages := uint32(0)
	if total > 0 {
		totalPages = uint32((total + uint64(effectivePageSize) - 1) / uint64(effectivePageSize))
	}

	start := uint64(page-1) * uint64(effectivePageSize)
	result := PaginatedEvents{Total: total, Page: page, PageSize: effectivePageSize, TotalPages: totalPages}
	if start >= total {
		return result, nil
	}
	end := start + uint64(effectivePageSize)
	if end > total {
		end = total
	}

	out := make([]events.Event, 0, end-start)
	for _, key := range matched[start:end] {
		ev, err := s.eventAtKey(key)
		if err != nil {
			return PaginatedEvents{}, err
		}
		out = append(out, ev)
	}
	result.Events = out
	return result, nil
}

// eventKeyFromIdxMintKey translates one idx_mint:{mint}:{slot}:{sig8}:
// {type}:{idx} key into the primary event:{slot}:{mint}:{sig8}:{type}:
// {idx} key it indexes.
func eventKeyFromIdxMintKey(key []byte, mint string) ([]byte, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 6 {
		return nil, fmt.Errorf("malformed idx_mint key %q", key)
	}
	slot, sig8, typeCode, idx := parts[2], parts[3], parts[4], parts[5]
	return []byte(fmt.Sprintf("event:%s:%s:%s:%s:%s", slot, mint, sig8, typeCode, idx)), nil
}

// eventKeyFromIdxUserKey translates one idx_user:{user}:{slot}:{mint}:
// {sig8}:{type}:{idx} key into its primary event row's key, returning
// (nil, nil) if wantMint is non-nil and does not match the key's mint
// segment.
func eventKeyFromIdxUserKey(key []byte, wantMint *string) ([]byte, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 7 {
		return nil, fmt.Errorf("malformed idx_user key %q", key)
	}
	slot, mint, sig8, typeCode, idx := parts[2], parts[3], parts[4], parts[5], parts[6]
	if wantMint != nil && mint != *wantMint {
		return nil, nil
	}
	return []byte(fmt.Sprintf("event:%s:%s:%s:%s:%s", slot, mint, sig8, typeCode, idx)), nil
}

func parseSlotBatchKey(key []byte) (uint64, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed slot_batch key %q", key)
	}
	var slot uint64
	if _, err := fmt.Sscanf(parts[1], "%010d", &slot); err != nil {
		return 0, fmt.Errorf("parse slot_batch key %q: %w", key, err)
	}
	return slot, nil
}
