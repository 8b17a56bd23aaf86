package mcp

import (
	"context"

	"github.com/shopspring/decimal"

	"hl-mcp-trader/internal/domain"
)

// MarketReader exposes market-data reads against the venue.
type MarketReader interface {
	AllMids(ctx context.Context) (map[string]decimal.Decimal, error)
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	ListSymbols(ctx context.Context, limit int) ([]string, error)
	FindSymbols(ctx context.Context, query string, limit int) ([]domain.SymbolMatch, error)
}

// OrderWriter exposes the venue's mutating operations.
type OrderWriter interface {
	PlaceOrder(ctx context.Context, spec domain.OrderSpec) (*domain.OrderAck, error)
	CancelOrder(ctx context.Context, orderID int64) (*domain.CancelAck, error)
}

// AccountReader exposes account-state reads.
type AccountReader interface {
	Positions(ctx context.Context, scope domain.DexScope) ([]domain.PositionSnapshot, error)
	Balances(ctx context.Context, scope domain.DexScope) (*domain.BalanceSnapshot, error)
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)
}

// Exchange is the full venue capability the server is wired with. One shared
// instance serves all concurrent requests.
type Exchange interface {
	MarketReader
	OrderWriter
	AccountReader
}
