// Package middleware provides production-grade middleware for the effect
// runtime.
//
// This package includes:
//   - OpenTelemetry tracing of every callback and cleanup
//   - Prometheus metrics for invocations, commits and instances
//   - Structured logging with log/slog
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware opens one span per invocation. Spans carry the
// instance, slot, label, phase and commit.
//
//	rt := effect.New(
//	    effect.WithMiddleware(middleware.OpenTelemetry()),
//	)
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithInvocationFilter(func(inv effect.Invocation) bool {
//	        return inv.Kind == effect.InvokeCallback
//	    }),
//	)
//
// # Prometheus Metrics
//
// Prometheus counts and times invocations; PrometheusObserver records
// commits, skips and live instances:
//   - effects_invocations_total
//   - effects_invocation_duration_seconds
//   - effects_commits_total
//   - effects_live_instances
//
//	rt := effect.New(
//	    effect.WithMiddleware(middleware.Prometheus()),
//	    effect.WithObserver(middleware.PrometheusObserver()),
//	)
//
// Then expose metrics on a separate port:
//
//	http.Handle("/metrics", promhttp.Handler())
//	go http.ListenAndServe(":9090", nil)
//
// The first middleware passed to effect.WithMiddleware is the outermost.
package middleware
