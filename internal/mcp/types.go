package mcp

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hl-mcp-trader/internal/domain"
	"hl-mcp-trader/internal/errs"
)

const (
	defaultSymbolLimit = 50
	maxSymbolLimit     = 500
	defaultFindLimit   = 20
)

type markPriceInput struct {
	Symbol string `json:"symbol" jsonschema:"asset symbol (e.g. BTC, ETH)"`
}

type markPriceOutput struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type listSymbolsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of symbols to return, max 500"`
}

type listSymbolsOutput struct {
	Count   int      `json:"count"`
	Symbols []string `json:"symbols"`
}

type findSymbolsInput struct {
	Query string `json:"query" jsonschema:"substring to match against symbols, case-insensitive"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of matches to return"`
}

type symbolMatchOutput struct {
	Symbol string  `json:"symbol"`
	Mid    float64 `json:"mid"`
}

type findSymbolsOutput struct {
	Matches []symbolMatchOutput `json:"matches"`
}

type placeOrderInput struct {
	Symbol     string   `json:"symbol" jsonschema:"asset symbol (e.g. BTC, ETH)"`
	Side       string   `json:"side" jsonschema:"buy or sell"`
	Qty        float64  `json:"qty" jsonschema:"order quantity, must be positive"`
	Price      *float64 `json:"price,omitempty" jsonschema:"limit price; omit for a market order"`
	TIF        string   `json:"tif,omitempty" jsonschema:"time in force: GTC, IOC, ALO (default GTC)"`
	ReduceOnly bool     `json:"reduce_only,omitempty" jsonschema:"only reduce an existing position"`
	Market     string   `json:"market,omitempty" jsonschema:"perp or spot (default perp)"`
	DryRun     bool     `json:"dry_run,omitempty" jsonschema:"echo the would-be order without submitting"`
}

type orderEcho struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Qty        float64  `json:"qty"`
	Price      *float64 `json:"price,omitempty"`
	TIF        string   `json:"tif"`
	Market     string   `json:"market"`
	ReduceOnly bool     `json:"reduce_only"`
}

type placeOrderOutput struct {
	Order   *domain.OrderAck `json:"order,omitempty"`
	DryRun  bool             `json:"dry_run,omitempty"`
	Request *orderEcho       `json:"request,omitempty"`
}

type placeSpotOrderInput struct {
	Symbol string   `json:"symbol" jsonschema:"asset symbol"`
	Side   string   `json:"side" jsonschema:"buy or sell"`
	Qty    float64  `json:"qty" jsonschema:"order quantity"`
	Price  *float64 `json:"price,omitempty" jsonschema:"limit price; omit for a market order"`
	TIF    string   `json:"tif,omitempty" jsonschema:"time in force: GTC, IOC, ALO"`
}

type cancelOrderInput struct {
	OrderID int64 `json:"order_id" jsonschema:"order id returned from placement or the open-orders query"`
}

type cancelOrderOutput struct {
	Result *domain.CancelAck `json:"result"`
}

type openOrdersInput struct{}

type openOrdersOutput struct {
	OpenOrders []domain.OpenOrder `json:"open_orders"`
}

type positionsInput struct {
	Dex string `json:"dex,omitempty" jsonschema:"optional scope: perp or spot; omit for all markets"`
}

type positionsOutput struct {
	Dex       string                    `json:"dex"`
	Positions []domain.PositionSnapshot `json:"positions"`
}

type balancesInput struct {
	Dex string `json:"dex,omitempty" jsonschema:"optional scope: perp or spot; omit for all markets"`
}

type balancesOutput struct {
	Dex      string                  `json:"dex"`
	Balances *domain.BalanceSnapshot `json:"balances"`
}

func invalidParams(format string, args ...any) error {
	return errs.New(errs.KindInvalidParameters, errs.WithMessage(fmt.Sprintf(format, args...)))
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", invalidParams("symbol is required")
	}
	return symbol, nil
}

func normalizeSymbolLimit(limit int) int {
	if limit <= 0 {
		return defaultSymbolLimit
	}
	if limit > maxSymbolLimit {
		return maxSymbolLimit
	}
	return limit
}

func normalizeFindLimit(limit int) int {
	if limit <= 0 {
		return defaultFindLimit
	}
	if limit > maxSymbolLimit {
		return maxSymbolLimit
	}
	return limit
}

func normalizeScope(raw string) (domain.DexScope, error) {
	scope, err := domain.ParseDexScope(raw)
	if err != nil {
		return "", invalidParams("dex: %v", err)
	}
	return scope, nil
}

// buildOrderSpec turns the loosely typed tool input into a validated
// OrderSpec. Every rejection names the offending field.
func buildOrderSpec(in placeOrderInput) (domain.OrderSpec, error) {
	symbol, err := normalizeSymbol(in.Symbol)
	if err != nil {
		return domain.OrderSpec{}, err
	}

	side, err := domain.ParseSide(in.Side)
	if err != nil {
		return domain.OrderSpec{}, invalidParams("side: %v", err)
	}

	if in.Qty <= 0 {
		return domain.OrderSpec{}, invalidParams("qty must be greater than 0")
	}
	qty := decimal.NewFromFloat(in.Qty)

	var price *decimal.Decimal
	if in.Price != nil {
		if *in.Price <= 0 {
			return domain.OrderSpec{}, invalidParams("price must be greater than 0")
		}
		px := decimal.NewFromFloat(*in.Price)
		price = &px
	}

	tifRaw := in.TIF
	if strings.TrimSpace(tifRaw) == "" {
		tifRaw = "GTC"
	}
	tif, err := domain.ParseTIF(tifRaw)
	if err != nil {
		return domain.OrderSpec{}, invalidParams("tif: %v", err)
	}

	market, err := domain.ParseMarket(in.Market)
	if err != nil {
		return domain.OrderSpec{}, invalidParams("market: %v", err)
	}

	spec := domain.OrderSpec{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		TIF:        tif,
		Market:     market,
		ReduceOnly: in.ReduceOnly,
	}
	if err := spec.Validate(); err != nil {
		return domain.OrderSpec{}, invalidParams("%v", err)
	}
	return spec, nil
}

func echoOrder(in placeOrderInput, spec domain.OrderSpec) *orderEcho {
	return &orderEcho{
		Symbol:     spec.Symbol,
		Side:       string(spec.Side),
		Qty:        in.Qty,
		Price:      in.Price,
		TIF:        string(spec.TIF),
		Market:     string(spec.Market),
		ReduceOnly: spec.ReduceOnly,
	}
}
