package main

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/effects/internal/config"
	"github.com/vango-dev/effects/pkg/effect"
	"github.com/vango-dev/effects/pkg/middleware"
)

// loadConfig loads the --config file, or the nearest project config, or the
// defaults. The --log-level flag overrides the file.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger builds the text logger used by every command.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel()}))
}

// instruments are the optional observability hooks wired into a runtime.
type instruments struct {
	registry *prometheus.Registry
	tracer   *sdktrace.TracerProvider
}

// runtimeOptions translates the configuration into runtime options.
func runtimeOptions(cfg *config.Config, logger *slog.Logger, inst instruments) []effect.Option {
	policy := effect.FailFast
	if cfg.Runtime.CallbackPolicy == "isolate" {
		policy = effect.Isolate
	}

	opts := []effect.Option{
		effect.WithLogger(logger),
		effect.WithCallbackPolicy(policy),
		effect.WithPanicOnUsageError(cfg.Runtime.PanicOnUsageError),
		effect.WithLogEffectRuns(cfg.Runtime.LogEffectRuns),
		effect.WithMaxEffectRunsPerCommit(cfg.Runtime.MaxEffectRunsPerCommit),
	}

	if cfg.Log.Level == "debug" {
		opts = append(opts, effect.WithMiddleware(middleware.Logging(logger)))
	}
	if cfg.Metrics.Enabled && inst.registry != nil {
		metricOpts := []middleware.MetricsOption{
			middleware.WithRegistry(inst.registry),
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithSubsystem(cfg.Metrics.Subsystem),
		}
		opts = append(opts,
			effect.WithMiddleware(middleware.Prometheus(metricOpts...)),
			effect.WithObserver(middleware.PrometheusObserver(metricOpts...)),
		)
	}
	if cfg.Tracing.Enabled && inst.tracer != nil {
		opts = append(opts, effect.WithMiddleware(middleware.OpenTelemetry(
			middleware.WithTracerName(cfg.Tracing.TracerName),
			middleware.WithTracerProvider(inst.tracer),
		)))
	}
	return opts
}
