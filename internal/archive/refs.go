package archive

import (
	"encoding/json"
	"fmt"
)

func encodeSigRefs(refs []sigRef) ([]byte, error) {
	return json.Marshal(refs)
}

func decodeSigRefs(data []byte) ([]sigRef, error) {
	var refs []sigRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("unmarshal sig_map value: %w", err)
	}
	return refs, nil
}

func encodeEventRefs(refs []eventRef) ([]byte, error) {
	return json.Marshal(refs)
}

func decodeEventRefs(data []byte) ([]eventRef, error) {
	var refs []eventRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("unmarshal slot_batch value: %w", err)
	}
	return refs, nil
}
