package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const maxFeedReconnectInterval = 30 * time.Second

// midsFeed maintains a streaming all-mids subscription and caches the latest
// map. MarkPrice consults this cache before falling back to a REST read.
type midsFeed struct {
	url string

	mu    sync.RWMutex
	mids  map[string]decimal.Decimal
	fresh bool

	cancel context.CancelFunc
	done   chan struct{}
}

type subscribeMessageWire struct {
	Method       string `json:"method"`
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
}

type feedMessageWire struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

func newMidsFeed(url string) *midsFeed {
	return &midsFeed{url: url, done: make(chan struct{})}
}

// start runs the subscribe/read loop in the background, reconnecting with
// exponential backoff until the context terminates.
func (f *midsFeed) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.run(runCtx)
}

func (f *midsFeed) stop() {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
}

func (f *midsFeed) run(ctx context.Context) {
	defer close(f.done)

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = maxFeedReconnectInterval

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.session(ctx); err == nil {
			backoffCfg.Reset()
			continue
		}
		f.markStale()

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = maxFeedReconnectInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// session dials, subscribes, and reads until the connection fails or the
// context terminates.
func (f *midsFeed) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
	}()

	var sub subscribeMessageWire
	sub.Method = "subscribe"
	sub.Subscription.Type = "allMids"
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return err
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var msg feedMessageWire
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Channel != "allMids" || len(msg.Data.Mids) == 0 {
			continue
		}
		f.update(msg.Data.Mids)
	}
}

func (f *midsFeed) update(raw map[string]string) {
	mids := make(map[string]decimal.Decimal, len(raw))
	for sym, px := range raw {
		d, err := decimal.NewFromString(px)
		if err != nil {
			continue
		}
		mids[strings.ToUpper(sym)] = d
	}

	f.mu.Lock()
	f.mids = mids
	f.fresh = true
	f.mu.Unlock()
}

func (f *midsFeed) markStale() {
	f.mu.Lock()
	f.fresh = false
	f.mu.Unlock()
}

// snapshot returns a copy of the cached mids; ok is false until the first
// message arrives or after a disconnect.
func (f *midsFeed) snapshot() (map[string]decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.fresh || len(f.mids) == 0 {
		return nil, false
	}
	out := make(map[string]decimal.Decimal, len(f.mids))
	for sym, px := range f.mids {
		out[sym] = px
	}
	return out, true
}
