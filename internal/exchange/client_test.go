package exchange

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"hl-mcp-trader/internal/domain"
	"hl-mcp-trader/internal/errs"
)

type venueStub struct {
	t *testing.T

	mids      map[string]string
	openOrds  []map[string]any
	orderResp map[string]any
	cancelResp map[string]any

	infoCalls     atomic.Int64
	exchangeCalls atomic.Int64
	rateLimitInfo atomic.Int64 // remaining 429 responses before /info succeeds

	lastOrderAction map[string]any
}

func (v *venueStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)

		switch r.URL.Path {
		case "/info":
			v.infoCalls.Add(1)
			if v.rateLimitInfo.Load() > 0 {
				v.rateLimitInfo.Add(-1)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			switch payload["type"] {
			case "allMids":
				writeJSON(w, v.mids)
			case "meta":
				writeJSON(w, map[string]any{"universe": []map[string]any{
					{"name": "BTC"}, {"name": "ETH"}, {"name": "SOL"},
				}})
			case "openOrders":
				writeJSON(w, v.openOrds)
			case "clearinghouseState":
				writeJSON(w, map[string]any{
					"assetPositions": []map[string]any{{
						"position": map[string]any{
							"coin": "ETH", "szi": "1.5", "entryPx": "2500",
							"positionValue": "3750", "unrealizedPnl": "12.5",
							"leverage": map[string]any{"value": 5},
						},
					}},
					"marginSummary": map[string]any{"accountValue": "10000"},
					"withdrawable":  "6000",
					"time":          1700000000000,
				})
			case "spotClearinghouseState":
				writeJSON(w, map[string]any{"balances": []map[string]any{
					{"coin": "USDC", "total": "1000", "hold": "0"},
					{"coin": "PURR", "total": "0", "hold": "0"},
				}})
			default:
				v.t.Errorf("unexpected info type %v", payload["type"])
				w.WriteHeader(http.StatusBadRequest)
			}
		case "/exchange":
			v.exchangeCalls.Add(1)
			var action map[string]any
			if raw, ok := payload["action"]; ok {
				b, _ := json.Marshal(raw)
				_ = json.Unmarshal(b, &action)
			}
			if action["type"] == "order" {
				v.lastOrderAction = action
				writeJSON(w, v.orderResp)
				return
			}
			writeJSON(w, v.cancelResp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func newTestClient(t *testing.T, stub *venueStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	signer, err := NewLocalSigner("0x0102030405060708")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	client, err := New(Options{
		AccountAddress: "0xabc",
		BaseURL:        srv.URL,
		Timeout:        2 * time.Second,
		SkipWebsocket:  true,
		Signer:         signer,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client
}

func defaultStub(t *testing.T) *venueStub {
	return &venueStub{
		t:    t,
		mids: map[string]string{"BTC": "65000.5", "ETH": "2500", "SOL": "150"},
		orderResp: map[string]any{
			"status": "ok",
			"response": map[string]any{
				"type": "order",
				"data": map[string]any{"statuses": []map[string]any{
					{"resting": map[string]any{"oid": 777}},
				}},
			},
		},
		cancelResp: map[string]any{
			"status": "ok",
			"response": map[string]any{
				"type": "cancel",
				"data": map[string]any{"statuses": []any{"success"}},
			},
		},
	}
}

func TestResolveBaseURL(t *testing.T) {
	url, err := ResolveBaseURL("testnet", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != TestnetAPIURL {
		t.Fatalf("expected testnet URL, got %s", url)
	}

	url, err = ResolveBaseURL("devnet", "https://custom.example/")
	if err != nil {
		t.Fatalf("override should win: %v", err)
	}
	if url != "https://custom.example" {
		t.Fatalf("expected trimmed override, got %s", url)
	}

	if _, err := ResolveBaseURL("devnet", ""); err == nil {
		t.Fatal("expected error for unknown network without override")
	}
}

func TestMarkPrice(t *testing.T) {
	client := newTestClient(t, defaultStub(t))

	px, err := client.MarkPrice(context.Background(), " btc ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !px.Equal(decimal.NewFromFloat(65000.5)) {
		t.Fatalf("expected 65000.5, got %s", px)
	}

	_, err = client.MarkPrice(context.Background(), "FAKE")
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestInfoReadRetriesOnRateLimit(t *testing.T) {
	stub := defaultStub(t)
	stub.rateLimitInfo.Store(2)
	client := newTestClient(t, stub)

	px, err := client.MarkPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("expected bounded retry to succeed, got %v", err)
	}
	if !px.Equal(decimal.NewFromFloat(65000.5)) {
		t.Fatalf("unexpected price %s", px)
	}
	if got := stub.infoCalls.Load(); got != 3 {
		t.Fatalf("expected 3 info attempts, got %d", got)
	}
}

func TestInfoReadSurfacesRateLimitAfterBoundedAttempts(t *testing.T) {
	stub := defaultStub(t)
	stub.rateLimitInfo.Store(10)
	client := newTestClient(t, stub)

	_, err := client.MarkPrice(context.Background(), "BTC")
	if errs.KindOf(err) != errs.KindRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	if got := stub.infoCalls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

func TestVenueTimeoutSurfacesTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	signer, _ := NewLocalSigner("0x01")
	client, err := New(Options{
		AccountAddress: "0xabc",
		BaseURL:        srv.URL,
		Timeout:        50 * time.Millisecond,
		SkipWebsocket:  true,
		Signer:         signer,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	_, err = client.MarkPrice(context.Background(), "BTC")
	if errs.KindOf(err) != errs.KindTimeout {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}

func limitSpec(px float64) domain.OrderSpec {
	p := decimal.NewFromFloat(px)
	return domain.OrderSpec{
		Symbol:   "ETH",
		Side:     domain.SideBuy,
		Quantity: decimal.NewFromInt(1),
		Price:    &p,
		TIF:      domain.TIFGtc,
		Market:   domain.MarketPerp,
	}
}

func TestPlaceOrderLimitResting(t *testing.T) {
	stub := defaultStub(t)
	client := newTestClient(t, stub)

	ack, err := client.PlaceOrder(context.Background(), limitSpec(2400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.OrderID != 777 || ack.Status != "resting" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if ack.ClientOrderID == "" {
		t.Fatal("expected a client order id to be attached")
	}

	orders := stub.lastOrderAction["orders"].([]any)
	order := orders[0].(map[string]any)
	if order["p"] != "2400" {
		t.Fatalf("expected limit px 2400, got %v", order["p"])
	}
	tif := order["t"].(map[string]any)["limit"].(map[string]any)["tif"]
	if tif != "Gtc" {
		t.Fatalf("expected Gtc tif, got %v", tif)
	}
}

func TestPlaceOrderMarketUsesIOCWithSlippagePrice(t *testing.T) {
	stub := defaultStub(t)
	client := newTestClient(t, stub)

	spec := limitSpec(0)
	spec.Price = nil
	spec.TIF = domain.TIFIoc

	if _, err := client.PlaceOrder(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orders := stub.lastOrderAction["orders"].([]any)
	order := orders[0].(map[string]any)
	tif := order["t"].(map[string]any)["limit"].(map[string]any)["tif"]
	if tif != "Ioc" {
		t.Fatalf("market order must be IOC, got %v", tif)
	}
	// Buy slippage: mid 2500 + 5% = 2625.
	if order["p"] != "2625" {
		t.Fatalf("expected aggressive px 2625, got %v", order["p"])
	}
}

func TestPlaceOrderSpotNeverCallsVenue(t *testing.T) {
	stub := defaultStub(t)
	client := newTestClient(t, stub)

	spec := limitSpec(2400)
	spec.Market = domain.MarketSpot
	_, err := client.PlaceOrder(context.Background(), spec)
	if errs.KindOf(err) != errs.KindNotImplemented {
		t.Fatalf("expected not_implemented, got %v", err)
	}
	if stub.exchangeCalls.Load() != 0 || stub.infoCalls.Load() != 0 {
		t.Fatal("spot placement must not reach the venue")
	}
}

func TestPlaceOrderVenueRejection(t *testing.T) {
	stub := defaultStub(t)
	stub.orderResp = map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{"statuses": []map[string]any{
				{"error": "Insufficient margin to place order."},
			}},
		},
	}
	client := newTestClient(t, stub)

	_, err := client.PlaceOrder(context.Background(), limitSpec(2400))
	if errs.KindOf(err) != errs.KindRejectedByVenue {
		t.Fatalf("expected rejected_by_venue, got %v", err)
	}
	var e *errs.E
	if !errors.As(err, &e) || e.RawMsg == "" {
		t.Fatal("expected the venue reason text to be carried")
	}
}

func TestPlaceOrderDuplicateCloidIsAmbiguous(t *testing.T) {
	stub := defaultStub(t)
	stub.orderResp = map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{"statuses": []map[string]any{
				{"error": "Order with this cloid was already submitted."},
			}},
		},
	}
	client := newTestClient(t, stub)

	_, err := client.PlaceOrder(context.Background(), limitSpec(2400))
	if errs.KindOf(err) != errs.KindAmbiguousState {
		t.Fatalf("expected ambiguous_state, got %v", err)
	}
}

func TestCancelOrderRoundTrip(t *testing.T) {
	stub := defaultStub(t)
	stub.openOrds = []map[string]any{
		{"coin": "ETH", "limitPx": "2400", "oid": 777, "side": "B", "sz": "1", "timestamp": 1700000000000},
	}
	client := newTestClient(t, stub)

	ack, err := client.PlaceOrder(context.Background(), limitSpec(2400))
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	cancel, err := client.CancelOrder(context.Background(), ack.OrderID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancel.OrderID != 777 || cancel.Status != "cancelled" {
		t.Fatalf("unexpected cancel ack %+v", cancel)
	}
}

func TestCancelOrderUnknownIDIsNotFound(t *testing.T) {
	stub := defaultStub(t)
	stub.openOrds = nil
	client := newTestClient(t, stub)

	_, err := client.CancelOrder(context.Background(), 424242)
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if stub.exchangeCalls.Load() != 0 {
		t.Fatal("unknown order id must not produce a venue mutation")
	}
}

func TestPositionsScoping(t *testing.T) {
	client := newTestClient(t, defaultStub(t))

	perp, err := client.Positions(context.Background(), domain.ScopePerp)
	if err != nil {
		t.Fatalf("perp: %v", err)
	}
	if len(perp) != 1 || perp[0].Market != domain.MarketPerp || perp[0].Symbol != "ETH" {
		t.Fatalf("unexpected perp positions %+v", perp)
	}

	spot, err := client.Positions(context.Background(), domain.ScopeSpot)
	if err != nil {
		t.Fatalf("spot: %v", err)
	}
	// Zero-total balances are filtered out.
	if len(spot) != 1 || spot[0].Symbol != "USDC" {
		t.Fatalf("unexpected spot positions %+v", spot)
	}

	all, err := client.Positions(context.Background(), domain.ScopeAll)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != len(perp)+len(spot) {
		t.Fatalf("unscoped query must union scoped results, got %d", len(all))
	}
}

func TestBalancesScoping(t *testing.T) {
	client := newTestClient(t, defaultStub(t))

	snap, err := client.Balances(context.Background(), domain.ScopeAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.MarginSummary == nil || !snap.MarginSummary.AccountValue.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected perp margin summary, got %+v", snap.MarginSummary)
	}
	if len(snap.Balances) != 2 {
		t.Fatalf("expected spot balances, got %+v", snap.Balances)
	}
	if !snap.Withdrawable.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("unexpected withdrawable %s", snap.Withdrawable)
	}

	spotOnly, err := client.Balances(context.Background(), domain.ScopeSpot)
	if err != nil {
		t.Fatalf("spot: %v", err)
	}
	if spotOnly.MarginSummary != nil {
		t.Fatal("spot scope must not include perp margin state")
	}
}

func TestOpenOrdersParse(t *testing.T) {
	stub := defaultStub(t)
	stub.openOrds = []map[string]any{
		{"coin": "eth", "limitPx": "2400.5", "oid": 9, "side": "A", "sz": "0.25", "timestamp": 42},
	}
	client := newTestClient(t, stub)

	orders, err := client.OpenOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
	o := orders[0]
	if o.Symbol != "ETH" || o.Side != domain.SideSell || !o.LimitPx.Equal(decimal.NewFromFloat(2400.5)) {
		t.Fatalf("unexpected order %+v", o)
	}
}
