package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/effects/pkg/scenario"
)

type runOptions struct {
	policy  string
	maxRuns int
	strict  bool
	metrics bool
	spans   bool
}

func runCmd(flags *globalFlags) *cobra.Command {
	opts := runOptions{maxRuns: -1}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Play scenarios and print their effect traces",
		Long: `Play one or more scenario files against a fresh runtime each and
print the trace of effect runs, skips, cleanups and failures.

Examples:
  effectctl run testdata/counter.yaml
  effectctl run --policy=isolate --strict scenarios/*.yaml
  effectctl run --metrics --spans counter.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.policy, "policy", "", "Callback failure policy override: fail-fast or isolate")
	cmd.Flags().IntVar(&opts.maxRuns, "max-runs", -1, "Per-commit effect run budget override (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any step reports an error")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print Prometheus counters after the run")
	cmd.Flags().BoolVar(&opts.spans, "spans", false, "Record OpenTelemetry spans and print a summary")

	return cmd
}

func runScenarios(ctx context.Context, out, errOut io.Writer, flags *globalFlags, opts runOptions, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if opts.policy != "" {
		cfg.Runtime.CallbackPolicy = opts.policy
	}
	if opts.maxRuns >= 0 {
		cfg.Runtime.MaxEffectRunsPerCommit = opts.maxRuns
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var inst instruments
	if opts.metrics || cfg.Metrics.Enabled {
		cfg.Metrics.Enabled = true
		inst.registry = prometheus.NewRegistry()
	}
	var recorder *tracetest.SpanRecorder
	if opts.spans || cfg.Tracing.Enabled {
		cfg.Tracing.Enabled = true
		recorder = tracetest.NewSpanRecorder()
		inst.tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		defer inst.tracer.Shutdown(context.Background())
	}

	logger := newLogger(cfg, errOut)
	runtimeOpts := runtimeOptions(cfg, logger, inst)

	failed := 0
	for i, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}

		p := scenario.NewPlayer(out, runtimeOpts...)
		res, err := p.Play(ctx, s)
		if err != nil {
			return err
		}
		if err := p.Close(); err != nil {
			res.Errors++
		}
		if res.Errors > 0 {
			failed++
		}
	}

	if opts.metrics && inst.registry != nil {
		fmt.Fprintln(out)
		if err := printMetrics(out, inst.registry); err != nil {
			return err
		}
	}
	if recorder != nil && opts.spans {
		fmt.Fprintln(out)
		printSpans(out, recorder)
	}

	if opts.strict && failed > 0 {
		return fmt.Errorf("%d of %d scenarios reported errors", failed, len(paths))
	}
	return nil
}

// printMetrics prints every counter and gauge as "name{labels} value".
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "metrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				v = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			fmt.Fprintf(w, "  %s%s %g\n", mf.GetName(), formatLabels(m.GetLabel()), v)
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].GetName() < pairs[j].GetName() })
	s := "{"
	for i, p := range pairs {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s=%q", p.GetName(), p.GetValue())
	}
	return s + "}"
}

// printSpans prints a count of recorded spans per name.
func printSpans(w io.Writer, sr *tracetest.SpanRecorder) {
	spans := sr.Ended()
	errs := 0
	for _, s := range spans {
		if s.Status().Code == codes.Error {
			errs++
		}
	}
	fmt.Fprintf(w, "spans: %d recorded, %d with errors\n", len(spans), errs)
}
