package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/config"
	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

// nowFunc is swappable in tests; production always uses time.Now.
var nowFunc = time.Now

type Store struct {
	db         *pebble.DB
	cfg        config.IPFS
	httpClient *resty.Client
	log        *zap.Logger
}

func New(db *pebble.DB, cfg config.IPFS, log *zap.Logger) *Store {
	return &Store{db: db, cfg: cfg, httpClient: newIPFSClient(cfg), log: log}
}

// HandleEvent satisfies mintrouter.TokenRegistry: a TokenCreated event
// seeds a new record (with a best-effort IPFS metadata fetch), a
// MilestoneDiscount revises the fee schedule in place, and any event
// carrying a latest_price updates the running price — all on a
// best-effort basis, since the registry record for a mint may not exist
// yet if events arrive out of order (mirrored from the original's
// "don't throw, events may arrive out of order" comment).
func (s *Store) HandleEvent(ev events.Event) error {
	switch e := ev.(type) {
	case events.TokenCreated:
		return s.saveTokenFromEvent(e)
	case events.MilestoneDiscount:
		return s.updateTokenFees(e.MintAccount, e.SwapFee, e.BorrowFee, e.FeeDiscountFlag)
	}
	if price, ok := events.LatestPriceOf(ev); ok {
		return s.updateTokenPrice(ev.EventMint(), price)
	}
	return nil
}

func (s *Store) saveTokenFromEvent(e events.TokenCreated) error {
	detail := TokenDetail{
		Payer:            e.Payer,
		MintAccount:      e.MintAccount,
		CurveAccount:     e.CurveAccount,
		PoolTokenAccount: e.PoolTokenAccount,
		PoolSolAccount:   e.PoolSolAccount,
		FeeRecipient:     e.FeeRecipient,
		BaseFeeRecipient: e.BaseFeeRecipient,
		ParamsAccount:    e.ParamsAccount,
		SwapFee:          e.SwapFee,
		BorrowFee:        e.BorrowFee,
		FeeDiscountFlag:  e.FeeDiscountFlag,
		Name:             e.Name,
		Symbol:           e.Symbol,
		URI:              e.URI,
		UpOrderbook:      e.UpOrderbook,
		DownOrderbook:    e.DownOrderbook,
		LatestPrice:      e.LatestPrice,
		CreatedAt:        e.Timestamp.Unix(),
		CreatedSlot:      e.Slot,
		UpdatedAt:        nowFunc().Unix(),
	}

	if e.URI != "" {
		detail.URIData = fetchTokenURIData(s.httpClient, s.cfg, s.log, e.URI)
	}

	return s.saveTokenWithIndexes(detail)
}

func (s *Store) saveTokenWithIndexes(detail TokenDetail) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	encoded, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal token detail mint=%s: %w", detail.MintAccount, err)
	}

	if err := batch.Set(tokenKey(detail.MintAccount), encoded, nil); err != nil {
		return err
	}
	if err := batch.Set(tokenSymbolKey(strings.ToUpper(detail.Symbol), detail.MintAccount), nil, nil); err != nil {
		return err
	}
	if err := batch.Set(tokenCreatedKey(detail.CreatedAt, detail.MintAccount), nil, nil); err != nil {
		return err
	}
	if err := batch.Set(tokenSlotKey(detail.CreatedSlot, detail.MintAccount), nil, nil); err != nil {
		return err
	}
	if err := batch.Set(tokenPayerKey(detail.Payer, detail.CreatedAt, detail.MintAccount), nil, nil); err != nil {
		return err
	}

	return s.db.Apply(batch, pebble.Sync)
}

// GetByMint returns the record for mint, or (nil, nil) if no token has
// been created with that mint yet.
func (s *Store) GetByMint(mint string) (*TokenDetail, error) {
	value, closer, err := s.db.Get(tokenKey(mint))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token mint=%s: %w", mint, err)
	}
	defer closer.Close()

	var detail TokenDetail
	if err := json.Unmarshal(value, &detail); err != nil {
		return nil, fmt.Errorf("unmarshal token mint=%s: %w", mint, err)
	}
	return &detail, nil
}

func (s *Store) updateTokenPrice(mint string, price decimal.Decimal) error {
	return s.mutate(mint, func(detail *TokenDetail) {
		detail.LatestPrice = price
	})
}

func (s *Store) mutate(mint string, fn func(detail *TokenDetail)) error {
	detail, err := s.GetByMint(mint)
	if err != nil {
		return err
	}
	if detail == nil {
		// Events may arrive before the creation event is indexed; this
		// is not an error, matching the original's update_token_price
		// and update_token_fees behavior.
		s.log.Warn("token not found for update, skipping", zap.String("mint", mint))
		return nil
	}

	fn(detail)
	detail.UpdatedAt = nowFunc().Unix()

	encoded, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal token detail mint=%s: %w", mint, err)
	}
	if err := s.db.Set(tokenKey(mint), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("write token detail mint=%s: %w", mint, err)
	}
	return nil
}

func (s *Store) updateTokenFees(mint string, swapFee, borrowFee uint16, feeDiscountFlag uint8) error {
	return s.mutate(mint, func(detail *TokenDetail) {
		detail.SwapFee = swapFee
		detail.BorrowFee = borrowFee
		detail.FeeDiscountFlag = feeDiscountFlag
	})
}
