package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"hl-mcp-trader/internal/domain"
	"hl-mcp-trader/internal/errs"
)

type stubExchange struct {
	mids          map[string]decimal.Decimal
	perpPositions []domain.PositionSnapshot
	spotPositions []domain.PositionSnapshot
	balancesBy    map[domain.DexScope]*domain.BalanceSnapshot
	openOrders    []domain.OpenOrder

	placeAck  *domain.OrderAck
	placeErr  error
	cancelAck *domain.CancelAck
	cancelErr error

	placeCalls  int
	cancelCalls int
	lastSpec    domain.OrderSpec
	lastCancel  int64
	lastScope   domain.DexScope
}

func (s *stubExchange) AllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(s.mids))
	for k, v := range s.mids {
		out[k] = v
	}
	return out, nil
}

func (s *stubExchange) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if mid, ok := s.mids[symbol]; ok {
		return mid, nil
	}
	return decimal.Decimal{}, errs.New(errs.KindNotFound, errs.WithMessage("unknown symbol: "+symbol))
}

func (s *stubExchange) ListSymbols(ctx context.Context, limit int) ([]string, error) {
	symbols := make([]string, 0, len(s.mids))
	for symbol := range s.mids {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}

func (s *stubExchange) FindSymbols(ctx context.Context, query string, limit int) ([]domain.SymbolMatch, error) {
	query = strings.ToUpper(strings.TrimSpace(query))
	matches := make([]domain.SymbolMatch, 0)
	for symbol, mid := range s.mids {
		if strings.Contains(symbol, query) {
			matches = append(matches, domain.SymbolMatch{Symbol: symbol, Mid: mid})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Symbol < matches[j].Symbol })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *stubExchange) PlaceOrder(ctx context.Context, spec domain.OrderSpec) (*domain.OrderAck, error) {
	s.placeCalls++
	s.lastSpec = spec
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	if s.placeAck != nil {
		ack := *s.placeAck
		return &ack, nil
	}
	return &domain.OrderAck{OrderID: 101, Status: "resting"}, nil
}

func (s *stubExchange) CancelOrder(ctx context.Context, orderID int64) (*domain.CancelAck, error) {
	s.cancelCalls++
	s.lastCancel = orderID
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	if s.cancelAck != nil {
		ack := *s.cancelAck
		return &ack, nil
	}
	return &domain.CancelAck{OrderID: orderID, Status: "success"}, nil
}

func (s *stubExchange) Positions(ctx context.Context, scope domain.DexScope) ([]domain.PositionSnapshot, error) {
	s.lastScope = scope
	switch scope {
	case domain.ScopePerp:
		return append([]domain.PositionSnapshot(nil), s.perpPositions...), nil
	case domain.ScopeSpot:
		return append([]domain.PositionSnapshot(nil), s.spotPositions...), nil
	default:
		all := append([]domain.PositionSnapshot(nil), s.perpPositions...)
		return append(all, s.spotPositions...), nil
	}
}

func (s *stubExchange) Balances(ctx context.Context, scope domain.DexScope) (*domain.BalanceSnapshot, error) {
	s.lastScope = scope
	if snap, ok := s.balancesBy[scope]; ok {
		copied := *snap
		return &copied, nil
	}
	return &domain.BalanceSnapshot{Scope: scope}, nil
}

func (s *stubExchange) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	return append([]domain.OpenOrder(nil), s.openOrders...), nil
}

func testServer() (*sdkmcp.Server, *stubExchange) {
	exch := &stubExchange{
		mids: map[string]decimal.Decimal{
			"BTC": decimal.RequireFromString("65000.5"),
			"ETH": decimal.RequireFromString("2500"),
			"SOL": decimal.RequireFromString("150.25"),
		},
		perpPositions: []domain.PositionSnapshot{{
			Symbol:     "ETH",
			Market:     domain.MarketPerp,
			Size:       decimal.RequireFromString("1"),
			EntryPrice: decimal.RequireFromString("2400"),
		}},
		spotPositions: []domain.PositionSnapshot{{
			Symbol: "USDC",
			Market: domain.MarketSpot,
			Size:   decimal.RequireFromString("5000"),
		}},
		balancesBy: map[domain.DexScope]*domain.BalanceSnapshot{
			domain.ScopePerp: {Scope: domain.ScopePerp, Withdrawable: decimal.RequireFromString("900")},
			domain.ScopeSpot: {Scope: domain.ScopeSpot, Balances: []domain.SpotBalance{{Coin: "USDC", Total: decimal.RequireFromString("5000")}}},
			domain.ScopeAll:  {Scope: domain.ScopeAll, Withdrawable: decimal.RequireFromString("900")},
		},
		openOrders: []domain.OpenOrder{{OrderID: 777, Symbol: "ETH", Side: domain.SideBuy, LimitPx: decimal.RequireFromString("2400"), Size: decimal.RequireFromString("1")}},
	}

	srv := NewServer(nil, exch, ServerConfig{RequestTimeout: time.Second})
	return srv, exch
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

type headerRoundTripper struct {
	header string
	value  string
	base   http.RoundTripper
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.value != "" {
		clone.Header.Set(t.header, t.value)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeToolJSON(result *sdkmcp.CallToolResult, out any) error {
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			return json.Unmarshal([]byte(text.Text), out)
		}
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
