package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"hl-mcp-trader/internal/domain"
	"hl-mcp-trader/internal/errs"
)

// outputSchema mirrors the SDK's inferred schema for T, except that
// decimal.Decimal is declared as the JSON string it marshals to; without the
// override the inferred "object" schema rejects every decimal-bearing result
// during the SDK's output validation.
func outputSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.ForType(reflect.TypeFor[T](), &jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[decimal.Decimal](): {Type: "string"},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("output schema for %T: %v", *new(T), err))
	}
	return schema
}

func registerTools(server *mcp.Server, exch Exchange) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_mark_price",
		Description: "Get the current mark price for a symbol",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in markPriceInput) (*mcp.CallToolResult, markPriceOutput, error) {
		if exch == nil {
			return nil, markPriceOutput{}, fmt.Errorf("exchange client unavailable")
		}
		symbol, err := normalizeSymbol(in.Symbol)
		if err != nil {
			return nil, markPriceOutput{}, err
		}
		price, err := exch.MarkPrice(ctx, symbol)
		if err != nil {
			return nil, markPriceOutput{}, normalizeFailure(err)
		}
		return nil, markPriceOutput{Symbol: symbol, Price: price.InexactFloat64()}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_symbols",
		Description: "List tradable symbols known to the venue",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listSymbolsInput) (*mcp.CallToolResult, listSymbolsOutput, error) {
		if exch == nil {
			return nil, listSymbolsOutput{}, fmt.Errorf("exchange client unavailable")
		}
		symbols, err := exch.ListSymbols(ctx, normalizeSymbolLimit(in.Limit))
		if err != nil {
			return nil, listSymbolsOutput{}, normalizeFailure(err)
		}
		return nil, listSymbolsOutput{Count: len(symbols), Symbols: symbols}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_symbols",
		Description: "Fuzzy-search tradable symbols, returning each match with its mid price",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in findSymbolsInput) (*mcp.CallToolResult, findSymbolsOutput, error) {
		if exch == nil {
			return nil, findSymbolsOutput{}, fmt.Errorf("exchange client unavailable")
		}
		matches, err := exch.FindSymbols(ctx, in.Query, normalizeFindLimit(in.Limit))
		if err != nil {
			return nil, findSymbolsOutput{}, normalizeFailure(err)
		}
		out := make([]symbolMatchOutput, 0, len(matches))
		for _, m := range matches {
			out = append(out, symbolMatchOutput{Symbol: m.Symbol, Mid: m.Mid.InexactFloat64()})
		}
		return nil, findSymbolsOutput{Matches: out}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:         "place_order",
		Description:  "Place a perp order: market when price is omitted, limit otherwise. Supports dry_run.",
		OutputSchema: outputSchema[placeOrderOutput](),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in placeOrderInput) (*mcp.CallToolResult, placeOrderOutput, error) {
		if exch == nil {
			return nil, placeOrderOutput{}, fmt.Errorf("exchange client unavailable")
		}
		spec, err := buildOrderSpec(in)
		if err != nil {
			return nil, placeOrderOutput{}, err
		}
		if spec.Market == domain.MarketSpot {
			return nil, placeOrderOutput{}, errs.New(errs.KindNotImplemented,
				errs.WithMessage("spot order routing is not supported by the venue capability"))
		}
		if in.DryRun {
			return nil, placeOrderOutput{DryRun: true, Request: echoOrder(in, spec)}, nil
		}
		ack, err := exch.PlaceOrder(ctx, spec)
		if err != nil {
			return nil, placeOrderOutput{}, normalizeFailure(err)
		}
		return nil, placeOrderOutput{Order: ack}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:         "place_spot_order",
		Description:  "Place a spot order (not yet supported by the venue capability)",
		OutputSchema: outputSchema[placeOrderOutput](),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ placeSpotOrderInput) (*mcp.CallToolResult, placeOrderOutput, error) {
		return nil, placeOrderOutput{}, errs.New(errs.KindNotImplemented,
			errs.WithMessage("spot order routing is not supported by the venue capability"))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_order",
		Description: "Cancel an open order by order id",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in cancelOrderInput) (*mcp.CallToolResult, cancelOrderOutput, error) {
		if exch == nil {
			return nil, cancelOrderOutput{}, fmt.Errorf("exchange client unavailable")
		}
		ack, err := exch.CancelOrder(ctx, in.OrderID)
		if err != nil {
			return nil, cancelOrderOutput{}, normalizeFailure(err)
		}
		return nil, cancelOrderOutput{Result: ack}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:         "get_open_orders",
		Description:  "List the account's resting orders",
		OutputSchema: outputSchema[openOrdersOutput](),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ openOrdersInput) (*mcp.CallToolResult, openOrdersOutput, error) {
		if exch == nil {
			return nil, openOrdersOutput{}, fmt.Errorf("exchange client unavailable")
		}
		orders, err := exch.OpenOrders(ctx)
		if err != nil {
			return nil, openOrdersOutput{}, normalizeFailure(err)
		}
		if orders == nil {
			orders = []domain.OpenOrder{}
		}
		return nil, openOrdersOutput{OpenOrders: orders}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:         "get_positions",
		Description:  "Get current positions, optionally scoped to perp or spot",
		OutputSchema: outputSchema[positionsOutput](),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in positionsInput) (*mcp.CallToolResult, positionsOutput, error) {
		if exch == nil {
			return nil, positionsOutput{}, fmt.Errorf("exchange client unavailable")
		}
		scope, err := normalizeScope(in.Dex)
		if err != nil {
			return nil, positionsOutput{}, err
		}
		positions, err := exch.Positions(ctx, scope)
		if err != nil {
			return nil, positionsOutput{}, normalizeFailure(err)
		}
		if positions == nil {
			positions = []domain.PositionSnapshot{}
		}
		return nil, positionsOutput{Dex: string(scope), Positions: positions}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:         "get_balances",
		Description:  "Get account balances and margin summaries, optionally scoped to perp or spot",
		OutputSchema: outputSchema[balancesOutput](),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in balancesInput) (*mcp.CallToolResult, balancesOutput, error) {
		if exch == nil {
			return nil, balancesOutput{}, fmt.Errorf("exchange client unavailable")
		}
		scope, err := normalizeScope(in.Dex)
		if err != nil {
			return nil, balancesOutput{}, err
		}
		snap, err := exch.Balances(ctx, scope)
		if err != nil {
			return nil, balancesOutput{}, normalizeFailure(err)
		}
		return nil, balancesOutput{Dex: string(scope), Balances: snap}, nil
	})
}

// normalizeFailure passes enveloped failures through and collapses anything
// else into a generic internal_error; the original detail is logged only.
func normalizeFailure(err error) error {
	var e *errs.E
	if errors.As(err, &e) {
		return e
	}
	slog.Error("unexpected handler failure", "error", err)
	return errs.New(errs.KindInternal, errs.WithMessage("internal error"))
}
