package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/effects/pkg/effect"
)

// Default tracer name for the effect runtime.
const defaultTracerName = "effects"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "effects").
	TracerName string

	// TracerProvider overrides the global tracer provider.
	TracerProvider trace.TracerProvider

	// IncludeCommit includes the commit ID and sequence in spans.
	// Enabled by default.
	IncludeCommit bool

	// Filter determines which invocations to trace.
	// Return true to trace the invocation, false to skip.
	// If nil, all invocations are traced.
	Filter func(inv effect.Invocation) bool

	// AttributeExtractor extracts custom attributes from the invocation.
	AttributeExtractor func(inv effect.Invocation) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider used instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeCommit enables/disables commit attributes on spans.
func WithIncludeCommit(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeCommit = include
	}
}

// WithInvocationFilter sets a filter function for invocations.
func WithInvocationFilter(filter func(inv effect.Invocation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(inv effect.Invocation) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:    defaultTracerName,
		IncludeCommit: true,
		Filter:        nil,
	}
}

// OpenTelemetry creates middleware that traces every effect callback and
// cleanup.
//
// Each span is named "effect.<kind> <instance>/<effect>" and carries the
// instance, slot, label and phase. Failures are recorded on the span and
// set its status.
//
// Example:
//
//	rt := effect.New(
//	    effect.WithMiddleware(
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    ),
//	)
//
// Without WithTracerProvider the tracer comes from the global provider.
// Configure it before creating the runtime:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) effect.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return effect.MiddlewareFunc(func(ctx context.Context, inv effect.Invocation, next func() error) error {
		if config.Filter != nil && !config.Filter(inv) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("effect.instance", string(inv.Instance)),
			attribute.Int("effect.slot", inv.Slot),
			attribute.String("effect.kind", inv.Kind.String()),
			attribute.String("effect.phase", inv.Phase.String()),
		}
		if inv.Label != "" {
			attrs = append(attrs, attribute.String("effect.label", inv.Label))
		}
		if config.IncludeCommit && inv.Commit != "" {
			attrs = append(attrs,
				attribute.String("effect.commit_id", inv.Commit),
				attribute.Int64("effect.commit_seq", int64(inv.Seq)),
			)
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(inv)...)
		}

		_, span := config.tracer.Start(ctx, formatSpanName(inv),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// formatSpanName creates a span name from the invocation.
func formatSpanName(inv effect.Invocation) string {
	return fmt.Sprintf("effect.%s %s/%s", inv.Kind, inv.Instance, inv.Name())
}
