package broadcast

import "fmt"

// Room names, generalized from the host repo's single
// "orderbook:{symbol}" convention to this system's three channel
// families.
func eventsRoom(mint string) string {
	return fmt.Sprintf("events:%s", mint)
}

func klineRoom(mint, interval string) string {
	return fmt.Sprintf("kline:%s:%s", mint, interval)
}

func liquidationsRoom(mint string) string {
	return fmt.Sprintf("liquidations:%s", mint)
}
