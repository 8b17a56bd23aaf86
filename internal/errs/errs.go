// Package errs provides the structured failure envelope returned by every
// tool handler and by the exchange adapter.
package errs

import (
	"errors"
	"strings"
)

// Kind identifies a stable failure category surfaced to the calling host.
type Kind string

const (
	// KindUnknownTool indicates the request named an unregistered tool.
	KindUnknownTool Kind = "unknown_tool"
	// KindInvalidParameters indicates parameter validation failed.
	KindInvalidParameters Kind = "invalid_parameters"
	// KindNotImplemented indicates a capability the venue does not support.
	KindNotImplemented Kind = "not_implemented"
	// KindNotFound indicates a referenced symbol or order is absent at the venue.
	KindNotFound Kind = "not_found"
	// KindRejectedByVenue indicates the venue declined the operation.
	KindRejectedByVenue Kind = "rejected_by_venue"
	// KindRateLimited indicates the venue signalled throttling.
	KindRateLimited Kind = "rate_limited"
	// KindTimeout indicates an adapter call exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindAmbiguousState indicates a mutating call whose effect cannot be confirmed.
	KindAmbiguousState Kind = "ambiguous_state"
	// KindInternal captures any unanticipated failure inside dispatch or a handler.
	KindInternal Kind = "internal_error"
)

// E carries a failure kind plus human-readable context through the
// handler/dispatcher boundary.
type E struct {
	Kind    Kind
	Message string
	RawMsg  string

	cause error
}

// Option configures a failure envelope.
type Option func(*E)

// New constructs a failure envelope for the given kind.
func New(kind Kind, opts ...Option) *E {
	e := &E{Kind: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRawMessage captures the raw venue-provided reason text.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RawMsg != "" {
		b.WriteString(" (venue: ")
		b.WriteString(e.RawMsg)
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *E) Unwrap() error {
	return e.cause
}

// KindOf classifies an arbitrary error. Errors that do not carry an envelope
// anywhere in their chain are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the failure may be retried by the adapter's
// bounded retry loop. Only throttling qualifies; every other kind is terminal
// per request.
func Retryable(err error) bool {
	return KindOf(err) == KindRateLimited
}
