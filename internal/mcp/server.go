package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hl-mcp-trader/internal/errs"
)

const defaultRequestTimeout = 30 * time.Second

type ServerConfig struct {
	RequestTimeout time.Duration
}

// NewServer builds the MCP server: tool and resource registration plus the
// timeout, panic-recovery, and tracing middleware chain. The returned server
// can be bound to any transport.
func NewServer(tracer trace.Tracer, exch Exchange, cfg ServerConfig) *sdkmcp.Server {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "hyperliquid-trader",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Use these tools to look up Hyperliquid market data, manage perp orders, and inspect positions and balances.",
		Logger:       slog.Default(),
	})

	srv.AddReceivingMiddleware(timeoutMiddleware(requestTimeout))
	srv.AddReceivingMiddleware(recoveryMiddleware(slog.Default()))
	srv.AddReceivingMiddleware(dispatchErrorMiddleware())
	if tracer != nil {
		srv.AddReceivingMiddleware(tracingMiddleware(tracer))
	}

	registerTools(srv, exch)
	registerResources(srv, exch)
	return srv
}

// NewHTTPTransportHandler binds the server to the streamable HTTP transport,
// wrapped with the auth gate, rate limiter, and body limit.
func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

// NewSSETransportHandler binds the server to the server-push SSE transport
// with the same wrapper chain as the HTTP transport.
func NewSSETransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewSSEHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, nil)
	return wrapHTTPHandler(base, cfg)
}

func timeoutMiddleware(timeout time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if timeout <= 0 {
				return next(ctx, method, req)
			}
			timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(timeoutCtx, method, req)
		}
	}
}

// recoveryMiddleware keeps a panicking handler from tearing down the
// transport: tool calls come back as internal_error results, everything else
// as a generic protocol error. Detail goes to the log only.
func recoveryMiddleware(logger *slog.Logger) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (result sdkmcp.Result, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.Error("panic in method handler", "method", method, "panic", r)
				internal := errs.New(errs.KindInternal, errs.WithMessage("internal error"))
				if method == "tools/call" {
					result = &sdkmcp.CallToolResult{
						IsError: true,
						Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: internal.Error()}},
					}
					err = nil
					return
				}
				result = nil
				err = internal
			}()
			return next(ctx, method, req)
		}
	}
}

// dispatchErrorMiddleware maps tool dispatch rejections, an unregistered
// tool name or arguments failing schema validation, onto tool-level failure
// results. Only the auth gate may reject at the protocol level.
func dispatchErrorMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			result, err := next(ctx, method, req)
			if err == nil || method != "tools/call" {
				return result, err
			}

			var failure *errs.E
			msg := err.Error()
			switch {
			case strings.Contains(msg, "unknown tool"):
				name := "unknown"
				if callReq, ok := req.(*sdkmcp.CallToolRequest); ok && callReq.Params != nil {
					name = callReq.Params.Name
				}
				failure = errs.New(errs.KindUnknownTool,
					errs.WithMessage(fmt.Sprintf("tool %q is not registered", name)), errs.WithCause(err))
			case strings.Contains(msg, "invalid params") || strings.Contains(msg, "validating"):
				failure = errs.New(errs.KindInvalidParameters, errs.WithMessage(msg), errs.WithCause(err))
			default:
				return result, err
			}

			return &sdkmcp.CallToolResult{
				IsError: true,
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: failure.Error()}},
			}, nil
		}
	}
}

func tracingMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			spanName := mcpSpanName(method, req)
			ctx, span := tracer.Start(ctx, spanName)
			span.SetAttributes(attribute.String("mcp.method", method))
			defer span.End()

			if callReq, ok := req.(*sdkmcp.CallToolRequest); ok {
				span.SetAttributes(attribute.String("mcp.tool", strings.TrimSpace(callReq.Params.Name)))
			}
			if readReq, ok := req.(*sdkmcp.ReadResourceRequest); ok {
				span.SetAttributes(attribute.String("mcp.resource.uri", strings.TrimSpace(readReq.Params.URI)))
			}

			result, err := next(ctx, method, req)
			if err != nil {
				span.RecordError(err)
			}
			return result, err
		}
	}
}

func mcpSpanName(method string, req sdkmcp.Request) string {
	switch method {
	case "tools/call":
		if callReq, ok := req.(*sdkmcp.CallToolRequest); ok {
			name := strings.TrimSpace(callReq.Params.Name)
			if name != "" {
				return "mcp.tool." + strings.ReplaceAll(name, "/", ".")
			}
		}
		return "mcp.tool.call"
	case "resources/read":
		return "mcp.resource.read"
	default:
		return "mcp." + strings.ReplaceAll(method, "/", ".")
	}
}
