package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/effects/pkg/effect"
)

// Logging creates middleware that logs every invocation at debug level and
// every failure at warn level. A nil logger uses slog.Default().
func Logging(logger *slog.Logger) effect.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "effects")

	return effect.MiddlewareFunc(func(ctx context.Context, inv effect.Invocation, next func() error) error {
		start := time.Now()
		err := next()

		attrs := []any{
			"kind", inv.Kind.String(),
			"phase", inv.Phase.String(),
			"instance", inv.Instance,
			"effect", inv.Name(),
			"duration", time.Since(start),
		}
		if inv.Seq > 0 {
			attrs = append(attrs, "seq", inv.Seq)
		}
		if err != nil {
			logger.WarnContext(ctx, "effect invocation failed", append(attrs, "error", err)...)
			return err
		}
		logger.DebugContext(ctx, "effect invocation", attrs...)
		return nil
	})
}
