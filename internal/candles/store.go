package candles

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

// UpdateListener is notified after every successful bucket write, so a
// caller can push a kline_data broadcast without this package needing to
// know anything about the broadcast layer's transport.
type UpdateListener func(mint string, interval Interval, candle Candle)

type Store struct {
	db       *pebble.DB
	onUpdate UpdateListener
}

func New(db *pebble.DB, onUpdate UpdateListener) *Store {
	return &Store{db: db, onUpdate: onUpdate}
}

// priceToFloat converts a raw u128 price to the fixed-point f64 the
// candle wire format uses, rounded to 12 decimals to suppress floating
// point noise from the division.
func priceToFloat(price decimal.Decimal) float64 {
	scale := decimal.New(1, pricePrecisionExponent)
	f, _ := price.DivRound(scale, 15).Float64()
	return math.Round(f*1e12) / 1e12
}

func bucketTime(unixSeconds uint64, interval Interval) uint64 {
	spb := secondsPerBucket(interval)
	return (unixSeconds / spb) * spb
}

// HandleEvent satisfies mintrouter.CandleAggregator: every event
// carrying a latest_price updates all three interval buckets it falls
// into, in place.
func (s *Store) HandleEvent(ev events.Event) error {
	price, ok := events.LatestPriceOf(ev)
	if !ok {
		return nil
	}
	mint := ev.EventMint()
	unixSeconds := uint64(ev.EventTimestamp().Unix())
	p := priceToFloat(price)

	for _, interval := range Intervals {
		if err := s.updateBucket(mint, interval, unixSeconds, p); err != nil {
			return fmt.Errorf("update %s candle mint=%s: %w", interval, mint, err)
		}
	}
	return nil
}

func (s *Store) updateBucket(mint string, interval Interval, unixSeconds uint64, price float64) error {
	bucket := bucketTime(unixSeconds, interval)
	key := candleKey(interval, mint, bucket)

	value, closer, err := s.db.Get(key)
	if err == nil {
		var existing Candle
		decodeErr := json.Unmarshal(value, &existing)
		closeErr := closer.Close()
		if decodeErr != nil {
			return fmt.Errorf("decode existing candle: %w", decodeErr)
		}
		if closeErr != nil {
			return closeErr
		}

		existing.High = math.Max(existing.High, price)
		existing.Low = math.Min(existing.Low, price)
		existing.Close = price
		existing.UpdateCount++
		existing.IsFinal = false

		if err := s.put(key, existing); err != nil {
			return err
		}
		s.notify(mint, interval, existing)
		return nil
	}
	if err != pebble.ErrNotFound {
		return fmt.Errorf("get candle: %w", err)
	}

	open, found, err := s.previousClose(mint, interval, bucket)
	if err != nil {
		return err
	}
	if !found {
		open = price
	}

	candle := Candle{
		Time:        bucket,
		Open:        open,
		High:        price,
		Low:         price,
		Close:       price,
		Volume:      0,
		IsFinal:     false,
		UpdateCount: 1,
	}
	if err := s.put(key, candle); err != nil {
		return err
	}
	s.notify(mint, interval, candle)
	return nil
}

func (s *Store) notify(mint string, interval Interval, candle Candle) {
	if s.onUpdate != nil {
		s.onUpdate(mint, interval, candle)
	}
}

func (s *Store) put(key []byte, candle Candle) error {
	encoded, err := json.Marshal(candle)
	if err != nil {
		return fmt.Errorf("marshal candle: %w", err)
	}
	if err := s.db.Set(key, encoded, pebble.Sync); err != nil {
		return fmt.Errorf("write candle: %w", err)
	}
	return nil
}

// previousClose scans backward from bucket, within the same (mint,
// interval) prefix, for the nearest earlier bucket's close price — the
// gap-filling open-price-continuity rule.
func (s *Store) previousClose(mint string, interval Interval, bucket uint64) (float64, bool, error) {
	prefix := candlePrefix(interval, mint)
	upper := candleKey(interval, mint, bucket)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return 0, false, fmt.Errorf("open previous-close iterator: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return 0, false, fmt.Errorf("iterate previous-close: %w", err)
		}
		return 0, false, nil
	}

	var candle Candle
	if err := json.Unmarshal(iter.Value(), &candle); err != nil {
		return 0, false, fmt.Errorf("decode previous candle: %w", err)
	}
	return candle.Close, true, nil
}

// Query returns every candle for (mint, interval), ordered by bucket
// time ascending, then applies page/pageSize. pageSize of 0 returns
// every match on page 1.
func (s *Store) Query(mint string, interval Interval, page, pageSize uint32) (QueryResult, error) {
	prefix := candlePrefix(interval, mint)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return QueryResult{}, fmt.Errorf("open candle query iterator: %w", err)
	}
	defer iter.Close()

	var all []Candle
	for iter.First(); iter.Valid(); iter.Next() {
		var candle Candle
		if err := json.Unmarshal(iter.Value(), &candle); err != nil {
			return QueryResult{}, fmt.Errorf("decode candle: %w", err)
		}
		all = append(all, candle)
	}
	if err := iter.Error(); err != nil {
		return QueryResult{}, fmt.Errorf("iterate candles: %w", err)
	}

	if page == 0 {
		page = 1
	}
	effectivePageSize := pageSize
	if effectivePageSize == 0 {
		effectivePageSize = uint32(len(all))
		if effectivePageSize == 0 {
			effectivePageSize = 1
		}
	}

	total := uint64(len(all))
	totalPages := uint32(0)
	if total > 0 {
		totalPages = uint32((total + uint64(effectivePageSize) - 1) / uint64(effectivePageSize))
	}

	start := uint64(page-1) * uint64(effectivePageSize)
	result := QueryResult{Mint: mint, Interval: interval, Total: total, Page: page, PageSize: effectivePageSize, TotalPages: totalPages}
	if start >= total {
		return result, nil
	}
	end := start + uint64(effectivePageSize)
	if end > total {
		end = total
	}
	result.Candles = all[start:end]
	return result, nil
}

// QueryResult is the candle aggregator's paginated query response shape.
type QueryResult struct {
	Candles    []Candle `json:"candles"`
	Total      uint64   `json:"total"`
	Page       uint32   `json:"page"`
	PageSize   uint32   `json:"page_size"`
	TotalPages uint32   `json:"total_pages"`
	Mint       string   `json:"mint_account"`
	Interval   Interval `json:"interval"`
}

// ParseInterval validates an interval string against the three supported
// buckets, matching query_kline_data's explicit allow-list check.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Interval1s, Interval30s, Interval5m:
		return Interval(s), nil
	default:
		return "", fmt.Errorf("invalid interval %q: must be one of s1, s30, m5", s)
	}
}

