package internal

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/nitro/annoverlay/internal/service"
)

// datadogLogger sends the tracer own messages to the service logger.
type datadogLogger struct {
	logger zerolog.Logger
}

func (dl datadogLogger) Log(msg string) {
	dl.logger.Info().Str("component", "datadog").Msg(strings.TrimSpace(msg))
}

// traceLogger builds the extractor used by the worker and the transport layer. The logs are correlated with the
// Datadog traces through the dd.trace_id and dd.span_id fields.
func traceLogger(enabled bool) service.TraceExtractor {
	if !enabled {
		return func(_ context.Context, logger zerolog.Logger) (zerolog.Logger, error) {
			return logger, nil
		}
	}

	return func(ctx context.Context, logger zerolog.Logger) (zerolog.Logger, error) {
		span, ok := tracer.SpanFromContext(ctx)
		if !ok {
			return logger, errors.New("could not find a span inside the context")
		}

		spanContext := span.Context()
		ids := zerolog.Dict().Uint64("trace_id", spanContext.TraceID()).Uint64("span_id", spanContext.SpanID())
		return logger.With().Dict("dd", ids).Logger(), nil
	}
}
