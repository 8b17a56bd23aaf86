package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AccountAddress string
	SecretKey      string
	Network        string
	APIBaseURL     string
	SkipWebsocket  bool

	VenueTimeoutSecs int

	MCPTransport          string
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPHTTPPath           string
	MCPSSEPath            string
	MCPAuthHeaderName     string
	MCPAuthHeaderValue    string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int
}

func Load() *Config {
	cfg := &Config{
		AccountAddress:     strings.TrimSpace(os.Getenv("HL_ACCOUNT_ADDRESS")),
		SecretKey:          strings.TrimSpace(os.Getenv("HL_SECRET_KEY")),
		APIBaseURL:         strings.TrimSpace(os.Getenv("HL_API_BASE_URL")),
		MCPAuthHeaderValue: strings.TrimSpace(os.Getenv("MCP_AUTH_HEADER_VALUE")),
	}

	cfg.Network = strings.ToLower(strings.TrimSpace(os.Getenv("HL_NETWORK")))
	if cfg.Network == "" {
		cfg.Network = "mainnet"
	}

	cfg.SkipWebsocket = parseBool(os.Getenv("HL_SKIP_WS"))

	cfg.VenueTimeoutSecs = 10
	if v := strings.TrimSpace(os.Getenv("HL_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VenueTimeoutSecs = n
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" && cfg.MCPTransport != "sse" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8000
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPHTTPPath = normalizePath(os.Getenv("MCP_HTTP_PATH"), "/mcp")
	cfg.MCPSSEPath = normalizePath(os.Getenv("MCP_SSE_PATH"), "/sse")

	cfg.MCPAuthHeaderName = strings.TrimSpace(os.Getenv("MCP_AUTH_HEADER_NAME"))
	if cfg.MCPAuthHeaderName == "" {
		cfg.MCPAuthHeaderName = "Authorization"
	}

	cfg.MCPRequestTimeoutSecs = 30
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	if cfg.MCPAuthHeaderValue == "" && cfg.MCPTransport != "stdio" {
		log.Println("Warning: MCP_AUTH_HEADER_VALUE not set, network transport will accept unauthenticated requests")
	}

	return cfg
}

// Validate rejects configurations that must abort startup before any
// transport begins accepting requests.
func (c *Config) Validate() error {
	if c.AccountAddress == "" {
		return fmt.Errorf("missing required environment variable HL_ACCOUNT_ADDRESS")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("missing required environment variable HL_SECRET_KEY")
	}
	switch c.Network {
	case "mainnet", "main", "testnet", "test", "local", "localhost":
	default:
		if c.APIBaseURL == "" {
			return fmt.Errorf("unsupported HL_NETWORK %q, set HL_API_BASE_URL for a custom endpoint", c.Network)
		}
	}
	return nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func normalizePath(raw, fallback string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
