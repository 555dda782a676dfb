package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-rules/internal/checkout"
	"github.com/xenking/kart-rules/internal/domain/cart"
	"github.com/xenking/kart-rules/internal/domain/discount"
	"github.com/xenking/kart-rules/internal/domain/shipping"
	"github.com/xenking/kart-rules/internal/handler"
	"github.com/xenking/kart-rules/pkg/health"
	"github.com/xenking/kart-rules/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	svc, err := checkout.NewService(
		discount.DefaultChain(),
		shipping.DefaultChain(),
		checkout.WithTracerProvider(m.TracerProvider()),
		checkout.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	lg.Info("Rule chains loaded",
		zap.Int("discount_rules", svc.DiscountRules()),
		zap.Int("shipping_rules", svc.ShippingRules()),
	)

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("checkout", time.Second, canaryCheck(svc))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc, healthSvc, m.TracerProvider(), m.MeterProvider()),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newRouter mounts the health and checkout endpoints behind the middleware
// stack. The rate limiter's sweeper lives until ctx is done.
func newRouter(
	ctx context.Context,
	cfg *Config,
	svc *checkout.Service,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	h := handler.NewHandler(handler.HandlerConfig{
		MaxBodyBytes:     cfg.MaxBodyBytes,
		BatchConcurrency: cfg.BatchConcurrency,
	}, svc)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.Instrument("kart-rules", tp, mp),
		httpmiddleware.LogRequests(),
	)
}

// canaryCheck evaluates a fixed prime order and expects the prime two-day
// offer. Each run builds a fresh order since evaluation mutates prices.
func canaryCheck(svc *checkout.Service) health.CheckFunc {
	return func(ctx context.Context) error {
		item, err := cart.NewItem("canary", decimal.NewFromInt(10), cart.SubscribeAndSave())
		if err != nil {
			return err
		}
		res, err := svc.Evaluate(ctx, cart.NewOrder(&cart.Customer{Prime: true}, []*cart.Item{item}))
		if err != nil {
			return errors.Wrap(err, "evaluate canary order")
		}
		if res.Offer != shipping.FreeTwoDay {
			return errors.Errorf("canary order got %q, want %q", res.Offer, shipping.FreeTwoDay)
		}
		return nil
	}
}
