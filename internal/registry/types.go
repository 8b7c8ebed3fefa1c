// Package registry is the token registry: one record per mint, created
// from its TokenCreated event and revised in place as later events carry
// a new price or fee schedule. Grounded on the original source's
// TokenStorage.
package registry

import "github.com/shopspring/decimal"

// TokenDetail is the primary record stored at token:{mint}. Field names
// mirror the upstream TokenDetail so its JSON shape round-trips the same
// way for any consumer that already speaks that wire format.
type TokenDetail struct {
	Payer            string `json:"payer"`
	MintAccount      string `json:"mint_account"`
	CurveAccount     string `json:"curve_account"`
	PoolTokenAccount string `json:"pool_token_account"`
	PoolSolAccount   string `json:"pool_sol_account"`
	FeeRecipient     string `json:"fee_recipient"`
	BaseFeeRecipient string `json:"base_fee_recipient"`
	ParamsAccount    string `json:"params_account"`
	SwapFee          uint16 `json:"swap_fee"`
	BorrowFee        uint16 `json:"borrow_fee"`
	FeeDiscountFlag  uint8  `json:"fee_discount_flag"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	URI              string `json:"uri"`
	UpOrderbook      string `json:"up_orderbook"`
	DownOrderbook    string `json:"down_orderbook"`

	LatestPrice decimal.Decimal `json:"latest_price"`

	CreatedAt   int64  `json:"created_at"`
	CreatedSlot uint64 `json:"created_slot"`
	UpdatedAt   int64  `json:"updated_at"`

	URIData *TokenURIData `json:"uri_data,omitempty"`
	Stats   *TokenStats   `json:"stats,omitempty"`

	Extras map[string]any `json:"extras,omitempty"`
}

// TokenURIData is the IPFS-hosted metadata a token's uri field points at,
// fetched best-effort on creation.
type TokenURIData struct {
	Name        *string `json:"name,omitempty"`
	Symbol      *string `json:"symbol,omitempty"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
	ShowName    *bool   `json:"show_name,omitempty"`
	CreatedOn   *string `json:"created_on,omitempty"`
	Twitter     *string `json:"twitter,omitempty"`
	Website     *string `json:"website,omitempty"`
	Telegram    *string `json:"telegram,omitempty"`
}

// TokenStats is carried forward from the original record shape so any
// future stats job's writes round-trip cleanly; nothing in this package
// populates it.
type TokenStats struct {
	MarketCap         *string  `json:"market_cap,omitempty"`
	Volume24h         *string  `json:"volume_24h,omitempty"`
	Holders           *uint64  `json:"holders,omitempty"`
	PriceChange24h    *float64 `json:"price_change_24h,omitempty"`
	Liquidity         *string  `json:"liquidity,omitempty"`
	TotalSupply       *string  `json:"total_supply,omitempty"`
	CirculatingSupply *string  `json:"circulating_supply,omitempty"`
}
