package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts the wire values "buy"/"sell" case-insensitively.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("side must be 'buy' or 'sell', got %q", raw)
	}
}

// TimeInForce holds the venue wire spelling (Gtc/Ioc/Alo).
type TimeInForce string

const (
	TIFGtc TimeInForce = "Gtc"
	TIFIoc TimeInForce = "Ioc"
	TIFAlo TimeInForce = "Alo"
)

var tifAliases = map[string]TimeInForce{
	"GTC": TIFGtc,
	"IOC": TIFIoc,
	"ALO": TIFAlo,
}

// ParseTIF maps the caller-facing aliases (GTC/IOC/ALO) to wire values.
func ParseTIF(raw string) (TimeInForce, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if tif, ok := tifAliases[key]; ok {
		return tif, nil
	}
	return "", fmt.Errorf("unsupported tif %q, supported values: GTC, IOC, ALO", raw)
}

type Market string

const (
	MarketPerp Market = "perp"
	MarketSpot Market = "spot"
)

// ParseMarket defaults an empty value to the perp market.
func ParseMarket(raw string) (Market, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "perp":
		return MarketPerp, nil
	case "spot":
		return MarketSpot, nil
	default:
		return "", fmt.Errorf("market must be 'perp' or 'spot', got %q", raw)
	}
}

// DexScope filters position/balance queries. The empty scope means all
// markets.
type DexScope string

const (
	ScopeAll  DexScope = ""
	ScopePerp DexScope = "perp"
	ScopeSpot DexScope = "spot"
)

// ParseDexScope validates the optional dex filter.
func ParseDexScope(raw string) (DexScope, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ScopeAll, nil
	case "perp":
		return ScopePerp, nil
	case "spot":
		return ScopeSpot, nil
	default:
		return "", fmt.Errorf("dex must be '', 'perp', or 'spot', got %q", raw)
	}
}

// OrderSpec is the validated order handed to the exchange client. A nil
// Price means a market order. Never mutated after Validate.
type OrderSpec struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	Price         *decimal.Decimal
	TIF           TimeInForce
	Market        Market
	ReduceOnly    bool
	ClientOrderID string
}

// IsLimit reports whether the spec carries a limit price.
func (s OrderSpec) IsLimit() bool {
	return s.Price != nil
}

// Validate enforces the order invariants: quantity > 0, and a positive
// price whenever one is present.
func (s OrderSpec) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if s.Side != SideBuy && s.Side != SideSell {
		return fmt.Errorf("side must be 'buy' or 'sell'")
	}
	if !s.Quantity.IsPositive() {
		return fmt.Errorf("qty must be greater than 0")
	}
	if s.Price != nil && !s.Price.IsPositive() {
		return fmt.Errorf("price must be greater than 0 for limit orders")
	}
	switch s.TIF {
	case TIFGtc, TIFIoc, TIFAlo:
	default:
		return fmt.Errorf("unsupported tif %q", s.TIF)
	}
	if s.Market != MarketPerp && s.Market != MarketSpot {
		return fmt.Errorf("market must be 'perp' or 'spot'")
	}
	return nil
}

// SymbolMatch pairs a symbol with its current mid price.
type SymbolMatch struct {
	Symbol string          `json:"symbol"`
	Mid    decimal.Decimal `json:"mid"`
}

// OrderAck is the venue's acknowledgment of a placement.
type OrderAck struct {
	OrderID       int64           `json:"order_id"`
	Status        string          `json:"status"`
	FilledSize    decimal.Decimal `json:"filled_size"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
}

// CancelAck is the venue's acknowledgment of a cancellation.
type CancelAck struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// OpenOrder is a resting order as reported by the venue.
type OpenOrder struct {
	OrderID   int64           `json:"order_id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	LimitPx   decimal.Decimal `json:"limit_px"`
	Size      decimal.Decimal `json:"size"`
	Timestamp int64           `json:"timestamp"`
}

// PositionSnapshot is a read-only projection of one position, returned
// verbatim from the venue state.
type PositionSnapshot struct {
	Symbol         string          `json:"symbol"`
	Market         Market          `json:"market"`
	Size           decimal.Decimal `json:"size"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	PositionValue  decimal.Decimal `json:"position_value"`
	UnrealizedPnl  decimal.Decimal `json:"unrealized_pnl"`
	Leverage       decimal.Decimal `json:"leverage"`
	LiquidationPx  decimal.Decimal `json:"liquidation_px"`
	MarginUsed     decimal.Decimal `json:"margin_used"`
	ReturnOnEquity decimal.Decimal `json:"return_on_equity"`
}

// SpotBalance is one coin balance in the spot account.
type SpotBalance struct {
	Coin  string          `json:"coin"`
	Total decimal.Decimal `json:"total"`
	Hold  decimal.Decimal `json:"hold"`
}

// MarginSummary mirrors the venue's margin roll-up.
type MarginSummary struct {
	AccountValue    decimal.Decimal `json:"account_value"`
	TotalNtlPos     decimal.Decimal `json:"total_ntl_pos"`
	TotalRawUsd     decimal.Decimal `json:"total_raw_usd"`
	TotalMarginUsed decimal.Decimal `json:"total_margin_used"`
}

// BalanceSnapshot carries balance and margin state for one scope.
type BalanceSnapshot struct {
	Scope              DexScope        `json:"dex"`
	Balances           []SpotBalance   `json:"balances"`
	MarginSummary      *MarginSummary  `json:"margin_summary,omitempty"`
	CrossMarginSummary *MarginSummary  `json:"cross_margin_summary,omitempty"`
	Withdrawable       decimal.Decimal `json:"withdrawable"`
	Time               int64           `json:"time,omitempty"`
}
