package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/effects/pkg/devtools"
	"github.com/vango-dev/effects/pkg/effect"
	"github.com/vango-dev/effects/pkg/scenario"
)

type serveOptions struct {
	addr     string
	interval time.Duration
	quiet    bool
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve [scenario.yaml]...",
		Short: "Start the devtools server",
		Long: `Start the devtools server over a live runtime.

Scenarios given as arguments are played against the served runtime,
once or every --interval, so the instance view, the event stream and
the metrics have something to show.

Endpoints:
  GET /api/instances   live instances and slots
  GET /api/stats       runtime counters
  GET /api/events      WebSocket event stream
  GET /metrics         Prometheus metrics

Examples:
  effectctl serve
  effectctl serve --addr=:7070 --interval=2s testdata/counter.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if opts.quiet {
				out = io.Discard
			}
			return runServe(ctx, out, cmd.ErrOrStderr(), flags, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Replay scenarios at this interval (0 = play once)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print scenario traces")

	return cmd
}

func runServe(ctx context.Context, out, errOut io.Writer, flags *globalFlags, opts serveOptions, paths []string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Devtools.Addr = opts.addr
	}

	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
	}

	logger := newLogger(cfg, errOut)
	reg := prometheus.NewRegistry()
	cfg.Metrics.Enabled = true

	hub := devtools.NewHub()
	runtimeOpts := append(runtimeOptions(cfg, logger, instruments{registry: reg}), effect.WithObserver(hub))
	player := scenario.NewPlayer(out, runtimeOpts...)

	srv := devtools.New(player.RT, hub,
		devtools.WithGatherer(reg),
		devtools.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		replay(ctx, player, scenarios, opts.interval)
	}()

	success(errOut, "devtools on http://%s", cfg.Devtools.Addr)
	err = srv.ListenAndServe(ctx, cfg.Devtools.Addr)

	cancel()
	<-done
	player.Close()
	return err
}

// replay plays every scenario, then again every interval until ctx ends.
// The player is only used from this goroutine.
func replay(ctx context.Context, p *scenario.Player, scenarios []*scenario.Scenario, interval time.Duration) {
	playAll := func() bool {
		for _, s := range scenarios {
			if _, err := p.Play(ctx, s); err != nil {
				return false
			}
		}
		return true
	}

	if len(scenarios) == 0 || !playAll() || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !playAll() {
				return
			}
		}
	}
}
