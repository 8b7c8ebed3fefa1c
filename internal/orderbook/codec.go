package orderbook

import (
	"encoding/json"
	"sort"

	"github.com/cockroachdb/pebble"
)

func putOrder(batch *pebble.Batch, key []byte, order MarginOrder) error {
	encoded, err := order.encode()
	if err != nil {
		return err
	}
	return batch.Set(key, encoded, nil)
}

func mustEncodeIndex(index uint16) []byte {
	b, err := json.Marshal(index)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeIndex(data []byte) (uint16, error) {
	var idx uint16
	if err := json.Unmarshal(data, &idx); err != nil {
		return 0, err
	}
	return idx, nil
}

func mustEncodeIndices(indices []uint16) []byte {
	if indices == nil {
		indices = []uint16{}
	}
	b, err := json.Marshal(indices)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeIndices(data []byte) ([]uint16, error) {
	var out []uint16
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortDescending(s []uint16) {
	sort.Slice(s, func(i, j int) bool { return s[i] > s[j] })
}

func dedupSorted(s []uint16) []uint16 {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
