package candles

import "fmt"

// Key schema: {interval}:{mint}:{bucket_time:020}. The 20-digit width
// matches the original's generate_kline_key (a Unix-second timestamp
// comfortably fits in far fewer digits; the width is carried forward
// verbatim since it's what on-disk data produced by the original
// producer would already use).
func candleKey(interval Interval, mint string, bucketTime uint64) []byte {
	return []byte(fmt.Sprintf("%s:%s:%020d", interval, mint, bucketTime))
}

func candlePrefix(interval Interval, mint string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", interval, mint))
}

func prefixUpperBound(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xff)
}
