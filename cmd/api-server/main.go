// Command api-server serves the checkout API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	kart "github.com/xenking/kart-rules/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := kart.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		lg.Info("Config loaded",
			zap.String("addr", cfg.Addr),
			zap.Int("batch_concurrency", cfg.BatchConcurrency),
			zap.Int("rate_limit", cfg.RateLimit.Max),
		)
		return kart.Run(zctx.Base(ctx, lg), lg, m, cfg)
	})
}
