package orderbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"
)

// ActiveUserOrder is one hit from QueryUserActiveOrders: a MarginOrder
// alongside the (mint, direction, slot index) it currently lives at,
// since the user_active index itself carries none of that.
type ActiveUserOrder struct {
	Mint      string
	Direction Direction
	Index     uint16
	Order     MarginOrder
}

// QueryUserActiveOrders prefix-scans the user_active index for user,
// optionally narrowed to one mint and/or one direction, on a single
// snapshot so the three-step index -> id_map -> slot lookup chain stays
// consistent even under concurrent mutation. Returns the total number of
// matching index entries (computed on the same snapshot, so it is exact)
// alongside the requested page.
func QueryUserActiveOrders(db *pebble.DB, user string, mintFilter, directionFilter *string, page, pageSize uint32) (uint32, []ActiveUserOrder, error) {
	prefix := fmt.Sprintf("user_active:%s:", user)
	if mintFilter != nil {
		prefix += *mintFilter + ":"
		if directionFilter != nil {
			prefix += string(*directionFilter) + ":"
		}
	}

	snap := db.NewSnapshot()
	defer snap.Close()

	iter, err := snap.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("open user_active iterator: %w", err)
	}
	defer iter.Close()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		if mintFilter == nil && directionFilter != nil {
			// The direction segment follows the mint, so without a mint
			// filter it cannot be part of the scan prefix.
			if _, dir, _, err := parseUserActiveKey(key); err != nil || string(dir) != *directionFilter {
				continue
			}
		}
		keys = append(keys, key)
	}
	if err := iter.Error(); err != nil {
		return 0, nil, fmt.Errorf("iterate user_active: %w", err)
	}

	total := uint32(len(keys))
	start := int((page - 1) * pageSize)
	if start > len(keys) {
		start = len(keys)
	}
	end := start + int(pageSize)
	if end > len(keys) {
		end = len(keys)
	}

	orders := make([]ActiveUserOrder, 0, end-start)
	for _, key := range keys[start:end] {
		mint, dir, orderID, err := parseUserActiveKey(key)
		if err != nil {
			continue
		}

		idxData, closer, err := snap.Get(idMapKey(mint, dir, orderID))
		if err == pebble.ErrNotFound {
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("get id map for order_id %d: %w", orderID, err)
		}
		index, err := decodeIndex(idxData)
		closer.Close()
		if err != nil {
			return 0, nil, err
		}

		orderData, closer, err := snap.Get(slotKey(mint, dir, index))
		if err == pebble.ErrNotFound {
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("get slot for index %d: %w", index, err)
		}
		order, err := decodeMarginOrder(orderData)
		closer.Close()
		if err != nil {
			return 0, nil, err
		}

		orders = append(orders, ActiveUserOrder{Mint: mint, Direction: dir, Index: index, Order: order})
	}

	return total, orders, nil
}

// parseUserActiveKey splits user_active:<user>:<mint>:<direction>:<start_time>:<order_id>.
func parseUserActiveKey(key string) (mint string, dir Direction, orderID uint64, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 6 {
		return "", "", 0, fmt.Errorf("malformed user_active key %q", key)
	}
	orderID, err = strconv.ParseUint(parts[5], 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid order_id in key %q: %w", key, err)
	}
	return parts[2], Direction(parts[3]), orderID, nil
}

func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	return append(upper, 0xff)
}

// ClosedOrderEntry pairs a ClosedOrderRecord with the (mint, direction)
// its closed_order key carries, since the record value itself does not
// repeat either — they live only in the key that groups it under its
// owning user.
type ClosedOrderEntry struct {
	Mint      string
	Direction Direction
	Record    ClosedOrderRecord
}

// ListClosedOrdersByUserRange is ListClosedOrdersByUser narrowed to
// close timestamps in [fromTs, toTs], exercising the same
// closed_order:<user>:<close_timestamp> key ordering to bound the scan
// instead of filtering every record in memory. Each hit is returned
// alongside the mint/direction its key carries.
func ListClosedOrdersByUserRange(db *pebble.DB, user string, fromTs, toTs uint32) ([]ClosedOrderEntry, error) {
	lower := []byte(fmt.Sprintf("closed_order:%s:%010d:", user, fromTs))
	upper := []byte(fmt.Sprintf("closed_order:%s:%010d;", user, toTs))

	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("open closed order range iterator: %w", err)
	}
	defer iter.Close()

	var out []ClosedOrderEntry
	for iter.First(); iter.Valid(); iter.Next() {
		record, err := decodeClosedOrderRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode closed order record: %w", err)
		}
		mint, dir, err := parseClosedOrderKeyMintDirection(string(iter.Key()))
		if err != nil {
			return nil, err
		}
		out = append(out, ClosedOrderEntry{Mint: mint, Direction: dir, Record: record})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate closed orders: %w", err)
	}
	return out, nil
}

// parseClosedOrderKeyMintDirection splits
// closed_order:<user>:<close_timestamp>:<mint>:<direction>:<order_id>.
func parseClosedOrderKeyMintDirection(key string) (mint string, dir Direction, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 6 {
		return "", "", fmt.Errorf("malformed closed_order key %q", key)
	}
	return parts[3], Direction(parts[4]), nil
}

// UserTradingStats summarizes a user's closed-order history: win/loss
// counts and PnL/fee/duration totals across every mint and direction.
type UserTradingStats struct {
	TotalTrades            int     `json:"total_trades"`
	WinningTrades          int     `json:"winning_trades"`
	LosingTrades           int     `json:"losing_trades"`
	TotalPnlSol            float64 `json:"total_pnl_sol"`
	TotalProfitSol         float64 `json:"total_profit_sol"`
	TotalLossSol           float64 `json:"total_loss_sol"`
	TotalBorrowFeeSol      float64 `json:"total_borrow_fee_sol"`
	TotalPositionDurationS uint64  `json:"total_position_duration_sec"`
}

// CalculateUserStats folds every closed order a user has ever held into
// a single trading-performance summary.
func CalculateUserStats(db *pebble.DB, user string) (UserTradingStats, error) {
	records, err := ListClosedOrdersByUser(db, user)
	if err != nil {
		return UserTradingStats{}, err
	}

	var stats UserTradingStats
	stats.TotalTrades = len(records)
	for _, record := range records {
		pnl, _ := record.FinalPnlSol.Float64()
		stats.TotalPnlSol += pnl
		switch {
		case pnl > 0:
			stats.WinningTrades++
			stats.TotalProfitSol += pnl
		case pnl < 0:
			stats.LosingTrades++
			stats.TotalLossSol += -pnl
		}

		fee, _ := record.TotalBorrowFeeSol.Float64()
		stats.TotalBorrowFeeSol += fee
		stats.TotalPositionDurationS += uint64(record.PositionDuration)
	}

	return stats, nil
}
