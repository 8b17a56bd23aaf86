package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, exch MarketReader) {
	server.AddResource(&mcp.Resource{
		URI:         "market://symbols",
		Name:        "symbols",
		Description: "Tradable symbols currently listed on the venue",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if exch == nil {
			return nil, fmt.Errorf("exchange unavailable")
		}
		symbols, err := exch.ListSymbols(ctx, maxSymbolLimit)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, listSymbolsOutput{Count: len(symbols), Symbols: symbols})
	})

	server.AddResource(&mcp.Resource{
		URI:         "market://mids",
		Name:        "mids",
		Description: "Current mid prices for all listed symbols",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if exch == nil {
			return nil, fmt.Errorf("exchange unavailable")
		}
		mids, err := exch.AllMids(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]float64, len(mids))
		for symbol, mid := range mids {
			out[symbol], _ = mid.Float64()
		}
		return jsonResource(req.Params.URI, out)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "market://mid/{symbol}",
		Name:        "mid-by-symbol",
		Description: "Current mid price for a specific symbol",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if exch == nil {
			return nil, fmt.Errorf("exchange unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "market" || parsed.Host != "mid" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		symbol, err := normalizeSymbol(strings.Trim(strings.TrimSpace(parsed.Path), "/"))
		if err != nil {
			return nil, err
		}

		price, err := exch.MarkPrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		px, _ := price.Float64()
		return jsonResource(req.Params.URI, markPriceOutput{Symbol: symbol, Price: px})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
