package archive

import "fmt"

// Key schema (data model §4.6), one row per (signature, type, idx):
//
//	event:{slot:010}:{mint}:{sig8}:{type}:{idx:03}              -> full event JSON
//	idx_mint:{mint}:{slot:010}:{sig8}:{type}:{idx:03}            -> empty
//	idx_user:{user}:{slot:010}:{mint}:{sig8}:{type}:{idx:03}     -> empty
//	sig_map:{signature}                                          -> []sigRef
//	slot_batch:{slot:010}                                        -> []eventRef
//
// sig8 is the first 8 characters of the signature. idx is the
// per-signature, per-type sequence starting at 1.

func sig8(signature string) string {
	if len(signature) <= 8 {
		return signature
	}
	return signature[:8]
}

func eventKey(slot uint64, mint, sig8, typeCode string, idx uint32) []byte {
	return []byte(fmt.Sprintf("event:%010d:%s:%s:%s:%03d", slot, mint, sig8, typeCode, idx))
}

func idxMintKey(mint string, slot uint64, sig8, typeCode string, idx uint32) []byte {
	return []byte(fmt.Sprintf("idx_mint:%s:%010d:%s:%s:%03d", mint, slot, sig8, typeCode, idx))
}

func idxMintPrefix(mint string) []byte {
	return []byte(fmt.Sprintf("idx_mint:%s:", mint))
}

func idxUserKey(user string, slot uint64, mint, sig8, typeCode string, idx uint32) []byte {
	return []byte(fmt.Sprintf("idx_user:%s:%010d:%s:%s:%s:%03d", user, slot, mint, sig8, typeCode, idx))
}

func idxUserPrefix(user string) []byte {
	return []byte(fmt.Sprintf("idx_user:%s:", user))
}

func sigMapKey(signature string) []byte {
	return []byte(fmt.Sprintf("sig_map:%s", signature))
}

func slotBatchKey(slot uint64) []byte {
	return []byte(fmt.Sprintf("slot_batch:%010d", slot))
}
