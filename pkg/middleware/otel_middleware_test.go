package middleware

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/effects/pkg/effect"
)

func newRecorder() (*tracetest.SpanRecorder, OTelOption) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, WithTracerProvider(tp)
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetryConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		config := defaultOTelConfig()
		if config.TracerName != defaultTracerName {
			t.Errorf("TracerName = %q, want %q", config.TracerName, defaultTracerName)
		}
		if !config.IncludeCommit {
			t.Error("IncludeCommit should be true by default")
		}
	})

	t.Run("with options", func(t *testing.T) {
		config := defaultOTelConfig()
		WithTracerName("my-app")(&config)
		WithIncludeCommit(false)(&config)
		WithInvocationFilter(func(effect.Invocation) bool { return true })(&config)

		if config.TracerName != "my-app" {
			t.Errorf("TracerName = %q, want %q", config.TracerName, "my-app")
		}
		if config.IncludeCommit {
			t.Error("IncludeCommit should be false")
		}
		if config.Filter == nil {
			t.Error("Filter should be set")
		}
	})
}

func TestOpenTelemetryMiddleware_RecordsSpan(t *testing.T) {
	sr, withTP := newRecorder()
	mw := OpenTelemetry(withTP,
		WithAttributeExtractor(func(effect.Invocation) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	if err := invoke(mw, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "effect.callback list/a" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status().Code)
	}

	tests := map[string]string{
		"effect.instance":  "list",
		"effect.label":     "a",
		"effect.phase":     "commit",
		"effect.commit_id": "c-1",
		"test.attr":        "ok",
	}
	for key, want := range tests {
		v, ok := spanAttr(span, key)
		if !ok || v.AsString() != want {
			t.Errorf("attribute %s = %v (present %v), want %q", key, v.Emit(), ok, want)
		}
	}
}

func TestOpenTelemetryMiddleware_ErrorSetsStatus(t *testing.T) {
	sr, withTP := newRecorder()

	wantErr := errors.New("boom")
	err := invoke(OpenTelemetry(withTP), func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error %v, got %v", wantErr, err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}

func TestOpenTelemetryMiddleware_FilterSkipsTracing(t *testing.T) {
	sr, withTP := newRecorder()

	nextCalled := false
	err := invoke(OpenTelemetry(withTP,
		WithInvocationFilter(func(inv effect.Invocation) bool { return inv.Kind != effect.InvokeCallback }),
	), func() error {
		nextCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !nextCalled {
		t.Fatal("expected next to be called")
	}
	if n := len(sr.Ended()); n != 0 {
		t.Fatalf("ended spans = %d, want 0", n)
	}
}

func TestFormatSpanName(t *testing.T) {
	tests := []struct {
		inv  effect.Invocation
		want string
	}{
		{effect.Invocation{Kind: effect.InvokeCallback, Instance: "list", Slot: 0, Label: "a"}, "effect.callback list/a"},
		{effect.Invocation{Kind: effect.InvokeCleanup, Instance: "list", Slot: 2}, "effect.cleanup list/#2"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatSpanName(tt.inv); got != tt.want {
				t.Errorf("formatSpanName() = %q, want %q", got, tt.want)
			}
		})
	}
}
