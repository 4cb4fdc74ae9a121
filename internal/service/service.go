package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// TraceExtractor returns a logger carrying the tracing ids found at the context. The worker and the transport
// layer share the same extractor.
type TraceExtractor func(context.Context, zerolog.Logger) (zerolog.Logger, error)

// Sentinel errors.
var (
	ErrClient   = ServiceError{origin: "client"}
	ErrNotFound = ServiceError{origin: "notFound"}
)

// ServiceError has detailed information about errors from the service package.
type ServiceError struct {
	base   error
	origin string
}

// Is checks if the given error and the current ServiceError are the same.
func (se ServiceError) Is(target error) bool {
	var err ServiceError
	if !errors.As(target, &err) {
		return false
	}
	return se.origin == err.origin
}

// Error is used to output the error message.
func (se ServiceError) Error() string {
	if se.base == nil {
		return se.origin
	}
	return se.base.Error()
}

// Unwrap exposes the base error.
func (se ServiceError) Unwrap() error {
	return se.base
}

func newClientError(err error) error {
	return ServiceError{base: err, origin: "client"}
}

func newNotFoundError(err error) error {
	return ServiceError{base: err, origin: "notFound"}
}

func startSpan(ctx context.Context, operation string) (ddtrace.Span, context.Context) {
	return ddTracer.StartSpanFromContext(ctx, "internal/service/"+operation)
}
