package mcp

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const defaultMCPMaxBodyBytes int64 = 1 << 20 // 1MiB

type HTTPHandlerConfig struct {
	// AuthHeaderName is the request header the guard inspects. When it is
	// "Authorization" the value must carry a "Bearer " prefix; any other
	// header is compared verbatim.
	AuthHeaderName string
	// AuthHeaderValue is the expected secret. Empty disables the guard.
	AuthHeaderValue string
	RateLimitPerMin int
	MaxBodyBytes    int64
}

func wrapHTTPHandler(base http.Handler, cfg HTTPHandlerConfig) http.Handler {
	h := withBodyLimit(base, cfg.MaxBodyBytes)
	h = withRateLimit(h, newHTTPRateLimiter(cfg.RateLimitPerMin), cfg.AuthHeaderName)
	h = withHeaderGuard(h, cfg.AuthHeaderName, cfg.AuthHeaderValue)
	return h
}

func withHeaderGuard(next http.Handler, headerName, expected string) http.Handler {
	headerName = strings.TrimSpace(headerName)
	if headerName == "" {
		headerName = "Authorization"
	}
	bearer := strings.EqualFold(headerName, "Authorization")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expected == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := strings.TrimSpace(r.Header.Get(headerName))
		if bearer {
			if !strings.HasPrefix(provided, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			provided = strings.TrimSpace(strings.TrimPrefix(provided, "Bearer "))
		} else if provided == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing auth header")
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			writeJSONError(w, http.StatusForbidden, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withBodyLimit(next http.Handler, limit int64) http.Handler {
	if limit <= 0 {
		limit = defaultMCPMaxBodyBytes
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func withRateLimit(next http.Handler, limiter *httpRateLimiter, headerName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow(rateLimitKey(r, headerName)) {
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitKey buckets by the configured credential plus remote host, so
// distinct clients behind one proxy do not share a bucket.
func rateLimitKey(r *http.Request, headerName string) string {
	headerName = strings.TrimSpace(headerName)
	if headerName == "" {
		headerName = "Authorization"
	}
	token := strings.TrimSpace(r.Header.Get(headerName))
	if strings.EqualFold(headerName, "Authorization") {
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if host == "" {
		host = "unknown"
	}
	if token == "" {
		return host
	}
	return token + "|" + host
}

type httpRateLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	bucket map[string]*tokenBucket
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

func newHTTPRateLimiter(perMin int) *httpRateLimiter {
	if perMin <= 0 {
		perMin = 60
	}
	return &httpRateLimiter{
		rate:   float64(perMin) / 60.0,
		burst:  float64(perMin),
		bucket: make(map[string]*tokenBucket),
	}
}

func (l *httpRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if key == "" {
		key = "default"
	}

	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bucket[key]
	if !ok {
		l.bucket[key] = &tokenBucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
