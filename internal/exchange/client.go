// Package exchange implements the Hyperliquid client used by every tool
// handler. Reads go through the /info endpoint, mutations through /exchange;
// both enforce a bounded per-call timeout. Only reads retry, and only on
// throttling or transient network failures.
package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hl-mcp-trader/internal/domain"
	"hl-mcp-trader/internal/errs"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"
	LocalAPIURL   = "http://localhost:3001"

	infoPath     = "/info"
	exchangePath = "/exchange"

	maxReadAttempts = 3

	// Market orders are sent as aggressive IOC limit orders priced off the
	// current mid, the same emulation the venue's own SDK performs.
	marketSlippagePct = 5
)

// ResolveBaseURL maps a network name to the venue endpoint, honoring an
// explicit override.
func ResolveBaseURL(network, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimRight(strings.TrimSpace(override), "/"), nil
	}
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "mainnet", "main":
		return MainnetAPIURL, nil
	case "testnet", "test":
		return TestnetAPIURL, nil
	case "local", "localhost":
		return LocalAPIURL, nil
	default:
		return "", fmt.Errorf("unsupported network %q, set HL_API_BASE_URL for a custom endpoint", network)
	}
}

// Options configures a Client.
type Options struct {
	AccountAddress string
	BaseURL        string
	Timeout        time.Duration
	SkipWebsocket  bool
	HTTPClient     *http.Client
	Signer         Signer
	Clock          func() time.Time
}

// Client owns the venue session: HTTP connections, the signer, the cached
// asset metadata, and the optional streaming mids feed. Safe for concurrent
// use; all mutable state is guarded.
type Client struct {
	baseURL string
	account string
	http    *http.Client
	timeout time.Duration
	signer  Signer
	clock   func() time.Time

	metaMu     sync.RWMutex
	assetIndex map[string]int

	feed *midsFeed
}

// New constructs a Client. Start must be called before use when the
// streaming feed is enabled.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.AccountAddress) == "" {
		return nil, fmt.Errorf("account address is required")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		account: strings.TrimSpace(opts.AccountAddress),
		http:    httpClient,
		timeout: opts.Timeout,
		signer:  opts.Signer,
		clock:   clock,
	}
	if !opts.SkipWebsocket {
		c.feed = newMidsFeed(wsURL(c.baseURL))
	}
	return c, nil
}

// Start launches the streaming mids feed when configured.
func (c *Client) Start(ctx context.Context) {
	if c.feed != nil {
		c.feed.start(ctx)
	}
}

// Close tears down the streaming feed.
func (c *Client) Close() {
	if c.feed != nil {
		c.feed.stop()
	}
}

func wsURL(base string) string {
	ws := strings.Replace(base, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return ws + "/ws"
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// AllMids returns the symbol→mid map, preferring the streaming cache.
func (c *Client) AllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	if c.feed != nil {
		if mids, ok := c.feed.snapshot(); ok {
			return mids, nil
		}
	}

	var raw map[string]string
	if err := c.infoRead(ctx, map[string]any{"type": "allMids"}, &raw); err != nil {
		return nil, err
	}
	mids := make(map[string]decimal.Decimal, len(raw))
	for sym, px := range raw {
		d, err := decimal.NewFromString(px)
		if err != nil {
			continue
		}
		mids[strings.ToUpper(sym)] = d
	}
	return mids, nil
}

// MarkPrice returns the mid price for one symbol.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	mids, err := c.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	px, ok := mids[symbol]
	if !ok {
		return decimal.Zero, errs.New(errs.KindNotFound,
			errs.WithMessage(fmt.Sprintf("symbol %q not found in venue mids", symbol)))
	}
	return px, nil
}

// ListSymbols returns sorted tradable symbols, truncated to limit when
// limit > 0.
func (c *Client) ListSymbols(ctx context.Context, limit int) ([]string, error) {
	mids, err := c.AllMids(ctx)
	if err != nil {
		return nil, err
	}
	syms := make([]string, 0, len(mids))
	for sym := range mids {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	if limit > 0 && len(syms) > limit {
		syms = syms[:limit]
	}
	return syms, nil
}

// FindSymbols returns symbols containing query, case-insensitive.
func (c *Client) FindSymbols(ctx context.Context, query string, limit int) ([]domain.SymbolMatch, error) {
	mids, err := c.AllMids(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	syms := make([]string, 0, len(mids))
	for sym := range mids {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	out := make([]domain.SymbolMatch, 0, limit)
	for _, sym := range syms {
		if !strings.Contains(strings.ToLower(sym), q) {
			continue
		}
		// Skip noisy synthetic tickers.
		if len(sym) < 1 || len(sym) > 12 {
			continue
		}
		out = append(out, domain.SymbolMatch{Symbol: sym, Mid: mids[sym]})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Account state
// ---------------------------------------------------------------------------

type assetPositionWire struct {
	Position struct {
		Coin           string `json:"coin"`
		Szi            string `json:"szi"`
		EntryPx        string `json:"entryPx"`
		PositionValue  string `json:"positionValue"`
		UnrealizedPnl  string `json:"unrealizedPnl"`
		LiquidationPx  string `json:"liquidationPx"`
		MarginUsed     string `json:"marginUsed"`
		ReturnOnEquity string `json:"returnOnEquity"`
		Leverage       struct {
			Value decimal.Decimal `json:"value"`
		} `json:"leverage"`
	} `json:"position"`
}

type marginSummaryWire struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

type clearinghouseStateWire struct {
	AssetPositions     []assetPositionWire `json:"assetPositions"`
	MarginSummary      *marginSummaryWire  `json:"marginSummary"`
	CrossMarginSummary *marginSummaryWire  `json:"crossMarginSummary"`
	Withdrawable       string              `json:"withdrawable"`
	Time               int64               `json:"time"`
}

type spotStateWire struct {
	Balances []struct {
		Coin  string `json:"coin"`
		Total string `json:"total"`
		Hold  string `json:"hold"`
	} `json:"balances"`
}

// Positions returns position snapshots for the scope. The unscoped query is
// the union of the perp and spot projections.
func (c *Client) Positions(ctx context.Context, scope domain.DexScope) ([]domain.PositionSnapshot, error) {
	switch scope {
	case domain.ScopePerp:
		return c.perpPositions(ctx)
	case domain.ScopeSpot:
		return c.spotPositions(ctx)
	default:
		perp, err := c.perpPositions(ctx)
		if err != nil {
			return nil, err
		}
		spot, err := c.spotPositions(ctx)
		if err != nil {
			return nil, err
		}
		return append(perp, spot...), nil
	}
}

func (c *Client) perpPositions(ctx context.Context) ([]domain.PositionSnapshot, error) {
	var state clearinghouseStateWire
	if err := c.infoRead(ctx, map[string]any{"type": "clearinghouseState", "user": c.account}, &state); err != nil {
		return nil, err
	}
	out := make([]domain.PositionSnapshot, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		p := ap.Position
		out = append(out, domain.PositionSnapshot{
			Symbol:         strings.ToUpper(p.Coin),
			Market:         domain.MarketPerp,
			Size:           parseDecimal(p.Szi),
			EntryPrice:     parseDecimal(p.EntryPx),
			PositionValue:  parseDecimal(p.PositionValue),
			UnrealizedPnl:  parseDecimal(p.UnrealizedPnl),
			Leverage:       p.Leverage.Value,
			LiquidationPx:  parseDecimal(p.LiquidationPx),
			MarginUsed:     parseDecimal(p.MarginUsed),
			ReturnOnEquity: parseDecimal(p.ReturnOnEquity),
		})
	}
	return out, nil
}

func (c *Client) spotPositions(ctx context.Context) ([]domain.PositionSnapshot, error) {
	var state spotStateWire
	if err := c.infoRead(ctx, map[string]any{"type": "spotClearinghouseState", "user": c.account}, &state); err != nil {
		return nil, err
	}
	out := make([]domain.PositionSnapshot, 0, len(state.Balances))
	for _, b := range state.Balances {
		total := parseDecimal(b.Total)
		if total.IsZero() {
			continue
		}
		out = append(out, domain.PositionSnapshot{
			Symbol: strings.ToUpper(b.Coin),
			Market: domain.MarketSpot,
			Size:   total,
		})
	}
	return out, nil
}

// Balances returns the balance/margin snapshot for the scope. The unscoped
// query merges perp margin state with spot holdings.
func (c *Client) Balances(ctx context.Context, scope domain.DexScope) (*domain.BalanceSnapshot, error) {
	snap := &domain.BalanceSnapshot{Scope: scope}

	if scope == domain.ScopePerp || scope == domain.ScopeAll {
		var state clearinghouseStateWire
		if err := c.infoRead(ctx, map[string]any{"type": "clearinghouseState", "user": c.account}, &state); err != nil {
			return nil, err
		}
		snap.MarginSummary = toMarginSummary(state.MarginSummary)
		snap.CrossMarginSummary = toMarginSummary(state.CrossMarginSummary)
		snap.Withdrawable = parseDecimal(state.Withdrawable)
		snap.Time = state.Time
	}

	if scope == domain.ScopeSpot || scope == domain.ScopeAll {
		var state spotStateWire
		if err := c.infoRead(ctx, map[string]any{"type": "spotClearinghouseState", "user": c.account}, &state); err != nil {
			return nil, err
		}
		snap.Balances = make([]domain.SpotBalance, 0, len(state.Balances))
		for _, b := range state.Balances {
			snap.Balances = append(snap.Balances, domain.SpotBalance{
				Coin:  strings.ToUpper(b.Coin),
				Total: parseDecimal(b.Total),
				Hold:  parseDecimal(b.Hold),
			})
		}
	}
	return snap, nil
}

type openOrderWire struct {
	Coin      string `json:"coin"`
	LimitPx   string `json:"limitPx"`
	Oid       int64  `json:"oid"`
	Side      string `json:"side"`
	Sz        string `json:"sz"`
	Timestamp int64  `json:"timestamp"`
}

// OpenOrders returns the account's resting orders.
func (c *Client) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var raw []openOrderWire
	if err := c.infoRead(ctx, map[string]any{"type": "openOrders", "user": c.account}, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.OpenOrder, 0, len(raw))
	for _, o := range raw {
		side := domain.SideSell
		if o.Side == "B" {
			side = domain.SideBuy
		}
		out = append(out, domain.OpenOrder{
			OrderID:   o.Oid,
			Symbol:    strings.ToUpper(o.Coin),
			Side:      side,
			LimitPx:   parseDecimal(o.LimitPx),
			Size:      parseDecimal(o.Sz),
			Timestamp: o.Timestamp,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Trading
// ---------------------------------------------------------------------------

type orderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	LimitPx    string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       orderTypeWire `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

type orderTypeWire struct {
	Limit *limitTypeWire `json:"limit,omitempty"`
}

type limitTypeWire struct {
	Tif string `json:"tif"`
}

type exchangeResponseWire struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []statusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type statusWire struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled"`
	Error string `json:"error"`

	// Cancel statuses arrive as bare strings ("success").
	Literal string `json:"-"`
}

func (s *statusWire) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Literal)
	}
	type plain statusWire
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = statusWire(p)
	return nil
}

// PlaceOrder submits the validated order. Mutations are never retried; a
// send whose outcome cannot be read surfaces ambiguous_state so the caller
// can reconcile against open orders.
func (c *Client) PlaceOrder(ctx context.Context, spec domain.OrderSpec) (*domain.OrderAck, error) {
	if spec.Market == domain.MarketSpot {
		return nil, errs.New(errs.KindNotImplemented,
			errs.WithMessage("spot order routing is not supported by the venue capability"))
	}
	if err := spec.Validate(); err != nil {
		return nil, errs.New(errs.KindInvalidParameters, errs.WithMessage(err.Error()), errs.WithCause(err))
	}

	asset, err := c.assetID(ctx, spec.Symbol)
	if err != nil {
		return nil, err
	}

	px := spec.Price
	tif := spec.TIF
	if px == nil {
		// Market emulation: aggressive IOC limit priced off the mid.
		mid, err := c.MarkPrice(ctx, spec.Symbol)
		if err != nil {
			return nil, err
		}
		slip := mid.Mul(decimal.New(marketSlippagePct, -2))
		agg := mid.Add(slip)
		if spec.Side == domain.SideSell {
			agg = mid.Sub(slip)
		}
		px = &agg
		tif = domain.TIFIoc
	}

	cloid := spec.ClientOrderID
	if cloid == "" {
		cloid = "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	action := map[string]any{
		"type": "order",
		"orders": []orderWire{{
			Asset:      asset,
			IsBuy:      spec.Side == domain.SideBuy,
			LimitPx:    px.String(),
			Size:       spec.Quantity.String(),
			ReduceOnly: spec.ReduceOnly,
			Type:       orderTypeWire{Limit: &limitTypeWire{Tif: string(tif)}},
			Cloid:      cloid,
		}},
		"grouping": "na",
	}

	var resp exchangeResponseWire
	if err := c.exchangeWrite(ctx, action, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, errs.New(errs.KindRejectedByVenue,
			errs.WithMessage("venue declined the order"), errs.WithRawMessage(resp.Status))
	}
	if len(resp.Response.Data.Statuses) == 0 {
		return nil, errs.New(errs.KindAmbiguousState,
			errs.WithMessage("venue acknowledged the request without an order status"))
	}

	st := resp.Response.Data.Statuses[0]
	switch {
	case st.Error != "":
		return nil, classifyOrderError(st.Error)
	case st.Filled != nil:
		return &domain.OrderAck{
			OrderID:       st.Filled.Oid,
			Status:        "filled",
			FilledSize:    parseDecimal(st.Filled.TotalSz),
			AveragePrice:  parseDecimal(st.Filled.AvgPx),
			ClientOrderID: cloid,
		}, nil
	case st.Resting != nil:
		return &domain.OrderAck{
			OrderID:       st.Resting.Oid,
			Status:        "resting",
			ClientOrderID: cloid,
		}, nil
	default:
		return nil, errs.New(errs.KindAmbiguousState,
			errs.WithMessage("venue returned an unrecognized order status"))
	}
}

func classifyOrderError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "duplicate") || strings.Contains(lower, "cloid"):
		return errs.New(errs.KindAmbiguousState,
			errs.WithMessage("venue reported a duplicate submission"), errs.WithRawMessage(msg))
	case strings.Contains(lower, "rate limit"):
		return errs.New(errs.KindRateLimited, errs.WithRawMessage(msg))
	default:
		return errs.New(errs.KindRejectedByVenue,
			errs.WithMessage("order rejected"), errs.WithRawMessage(msg))
	}
}

// CancelOrder cancels by order id, resolving the owning symbol through the
// open-orders list the way the venue requires.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) (*domain.CancelAck, error) {
	open, err := c.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	var symbol string
	for _, o := range open {
		if o.OrderID == orderID {
			symbol = o.Symbol
			break
		}
	}
	if symbol == "" {
		return nil, errs.New(errs.KindNotFound,
			errs.WithMessage(fmt.Sprintf("order id %d not found in open orders", orderID)))
	}

	asset, err := c.assetID(ctx, symbol)
	if err != nil {
		return nil, err
	}

	action := map[string]any{
		"type":    "cancel",
		"cancels": []map[string]any{{"a": asset, "o": orderID}},
	}
	var resp exchangeResponseWire
	if err := c.exchangeWrite(ctx, action, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, errs.New(errs.KindRejectedByVenue,
			errs.WithMessage("venue declined the cancellation"), errs.WithRawMessage(resp.Status))
	}
	if len(resp.Response.Data.Statuses) > 0 {
		if msg := resp.Response.Data.Statuses[0].Error; msg != "" {
			return nil, errs.New(errs.KindNotFound,
				errs.WithMessage("order is unknown or already terminal"), errs.WithRawMessage(msg))
		}
	}
	return &domain.CancelAck{OrderID: orderID, Status: "cancelled"}, nil
}

// ---------------------------------------------------------------------------
// Asset metadata
// ---------------------------------------------------------------------------

type metaWire struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

func (c *Client) assetID(ctx context.Context, symbol string) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	c.metaMu.RLock()
	idx, ok := c.assetIndex[symbol]
	c.metaMu.RUnlock()
	if ok {
		return idx, nil
	}

	var meta metaWire
	if err := c.infoRead(ctx, map[string]any{"type": "meta"}, &meta); err != nil {
		return 0, err
	}

	index := make(map[string]int, len(meta.Universe))
	for i, asset := range meta.Universe {
		index[strings.ToUpper(asset.Name)] = i
	}

	c.metaMu.Lock()
	c.assetIndex = index
	c.metaMu.Unlock()

	idx, ok = index[symbol]
	if !ok {
		return 0, errs.New(errs.KindNotFound,
			errs.WithMessage(fmt.Sprintf("symbol %q not found in venue universe", symbol)))
	}
	return idx, nil
}

// ---------------------------------------------------------------------------
// Wire plumbing
// ---------------------------------------------------------------------------

// infoRead POSTs an /info query with bounded retry on throttling and
// transient network failures.
func (c *Client) infoRead(ctx context.Context, payload any, out any) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 200 * time.Millisecond
	backoffCfg.MaxInterval = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		if attempt > 0 {
			sleep := backoffCfg.NextBackOff()
			if sleep == backoff.Stop {
				break
			}
			select {
			case <-ctx.Done():
				return timeoutOr(ctx.Err())
			case <-time.After(sleep):
			}
		}

		lastErr = c.post(ctx, infoPath, payload, out)
		if lastErr == nil {
			return nil
		}
		if !readRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// readRetryable reports whether a read may be re-attempted: venue throttling
// or a transport-level failure that carries no failure envelope.
func readRetryable(err error) bool {
	if errs.Retryable(err) {
		return true
	}
	var e *errs.E
	return !errors.As(err, &e) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}

// exchangeWrite signs and POSTs a mutation. No retry: an undeliverable
// response means the effect on the venue is unknown.
func (c *Client) exchangeWrite(ctx context.Context, action any, out any) error {
	actionBytes, err := json.Marshal(action)
	if err != nil {
		return errs.New(errs.KindInternal, errs.WithMessage("encode action"), errs.WithCause(err))
	}
	nonce := uint64(c.clock().UnixMilli())
	sig, err := c.signer.Sign(actionBytes, nonce)
	if err != nil {
		return errs.New(errs.KindInternal, errs.WithMessage("sign action"), errs.WithCause(err))
	}

	payload := map[string]any{
		"action":    json.RawMessage(actionBytes),
		"nonce":     nonce,
		"signature": sig,
	}
	if err := c.post(ctx, exchangePath, payload, out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errs.KindOf(err) == errs.KindTimeout {
			return errs.New(errs.KindTimeout,
				errs.WithMessage("venue call exceeded its deadline"), errs.WithCause(err))
		}
		var e *errs.E
		if errors.As(err, &e) {
			return err
		}
		// The request may have been written before the transport failed.
		return errs.New(errs.KindAmbiguousState,
			errs.WithMessage("order send interrupted, venue effect unconfirmed"), errs.WithCause(err))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return errs.New(errs.KindInternal, errs.WithMessage("encode request"), errs.WithCause(err))
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errs.New(errs.KindInternal, errs.WithMessage("create request"), errs.WithCause(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return timeoutOr(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return timeoutOr(err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errs.New(errs.KindRateLimited,
			errs.WithMessage("venue throttled the request"), errs.WithRawMessage(strings.TrimSpace(string(raw))))
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.KindNotFound, errs.WithRawMessage(strings.TrimSpace(string(raw))))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errs.New(errs.KindInternal,
			errs.WithMessage(fmt.Sprintf("venue returned status %d", resp.StatusCode)),
			errs.WithRawMessage(strings.TrimSpace(string(raw))))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.New(errs.KindInternal, errs.WithMessage("decode response"), errs.WithCause(err))
	}
	return nil
}

func timeoutOr(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return errs.New(errs.KindTimeout,
			errs.WithMessage("venue call exceeded its deadline"), errs.WithCause(err))
	}
	return err
}

func parseDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toMarginSummary(w *marginSummaryWire) *domain.MarginSummary {
	if w == nil {
		return nil
	}
	return &domain.MarginSummary{
		AccountValue:    parseDecimal(w.AccountValue),
		TotalNtlPos:     parseDecimal(w.TotalNtlPos),
		TotalRawUsd:     parseDecimal(w.TotalRawUsd),
		TotalMarginUsed: parseDecimal(w.TotalMarginUsed),
	}
}
