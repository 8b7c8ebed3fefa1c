package orderbook

import "fmt"

// Key schema, one order book per (mint, direction):
//
//	header:<mint>:<direction>                        -> Header
//	slot:<mint>:<direction>:<index:05>                -> MarginOrder
//	id_map:<mint>:<direction>:<order_id:010>          -> slot index (json uint16)
//	active_indices:<mint>:<direction>                 -> []uint16 (json)
//	user_active:<user>:<mint>:<direction>:<start_time:010>:<order_id:010> -> empty marker
//
// Slot indices are zero-padded to 5 digits and order ids to 10 digits so
// a prefix scan over a direction's slots or id-map entries comes back in
// numeric order without a secondary sort. user_active is written and
// deleted in lockstep with the slot mutation that creates or destroys an
// order's membership in the book, giving per-user active-order lookups a
// dedicated prefix scan without touching the linked list itself.

func headerKey(mint string, dir Direction) []byte {
	return []byte(fmt.Sprintf("header:%s:%s", mint, dir))
}

func slotKey(mint string, dir Direction, index uint16) []byte {
	return []byte(fmt.Sprintf("slot:%s:%s:%05d", mint, dir, index))
}

func idMapKey(mint string, dir Direction, orderID uint64) []byte {
	return []byte(fmt.Sprintf("id_map:%s:%s:%010d", mint, dir, orderID))
}

func activeIndicesKey(mint string, dir Direction) []byte {
	return []byte(fmt.Sprintf("active_indices:%s:%s", mint, dir))
}

func userActiveKey(user, mint string, dir Direction, startTime uint32, orderID uint64) []byte {
	return []byte(fmt.Sprintf("user_active:%s:%s:%s:%010d:%010d", user, mint, dir, startTime, orderID))
}

// closedOrderKey groups closed orders by user and orders them by closure
// time, so a user's closed-position history is one prefix scan away.
func closedOrderKey(user string, closeTimestamp uint32, mint string, dir Direction, orderID uint64) []byte {
	return []byte(fmt.Sprintf("closed_order:%s:%010d:%s:%s:%010d", user, closeTimestamp, mint, dir, orderID))
}
