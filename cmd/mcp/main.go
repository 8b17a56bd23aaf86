package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"

	"hl-mcp-trader/internal/config"
	"hl-mcp-trader/internal/exchange"
	mcpserver "hl-mcp-trader/internal/mcp"
	"hl-mcp-trader/pkg/tracing"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	newSignerFunc  = func(secretKey string) (exchange.Signer, error) {
		return exchange.NewLocalSigner(secretKey)
	}
	newExchangeFunc  = exchange.New
	newMCPServerFunc = func(tracer trace.Tracer, exch mcpserver.Exchange, cfg mcpserver.ServerConfig) *sdkmcp.Server {
		return mcpserver.NewServer(tracer, exch, cfg)
	}
	newHTTPHandlerFunc = mcpserver.NewHTTPTransportHandler
	newSSEHandlerFunc  = mcpserver.NewSSETransportHandler
	runStdioFunc       = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	signer, err := newSignerFunc(cfg.SecretKey)
	if err != nil {
		log.Fatalf("failed to initialize signer: %v", err)
	}

	baseURL, err := exchange.ResolveBaseURL(cfg.Network, cfg.APIBaseURL)
	if err != nil {
		log.Fatalf("failed to resolve venue endpoint: %v", err)
	}

	exch, err := newExchangeFunc(exchange.Options{
		AccountAddress: cfg.AccountAddress,
		BaseURL:        baseURL,
		Timeout:        time.Duration(cfg.VenueTimeoutSecs) * time.Second,
		SkipWebsocket:  cfg.SkipWebsocket,
		Signer:         signer,
	})
	if err != nil {
		log.Fatalf("failed to initialize exchange client: %v", err)
	}
	exch.Start(ctx)
	defer exch.Close()

	mcpSrv := newMCPServerFunc(tracer, exch, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	switch cfg.MCPTransport {
	case "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatalf("mcp stdio server failed: %v", err)
		}
	case "http", "sse":
		if err := runNetworkMode(cancel, cfg, mcpSrv); err != nil {
			log.Fatalf("mcp %s server failed: %v", cfg.MCPTransport, err)
		}
	default:
		log.Fatalf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

func runNetworkMode(cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	handlerCfg := mcpserver.HTTPHandlerConfig{
		AuthHeaderName:  cfg.MCPAuthHeaderName,
		AuthHeaderValue: cfg.MCPAuthHeaderValue,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	}

	mux := http.NewServeMux()
	switch cfg.MCPTransport {
	case "http":
		mux.Handle(cfg.MCPHTTPPath, newHTTPHandlerFunc(mcpSrv, handlerCfg))
	case "sse":
		mux.Handle(cfg.MCPSSEPath, newSSEHandlerFunc(mcpSrv, handlerCfg))
	}

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Printf("mcp %s server failed: %v", cfg.MCPTransport, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
