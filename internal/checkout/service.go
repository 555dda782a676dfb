// Package checkout runs orders through the discount and shipping chains.
package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-rules/internal/domain/cart"
	"github.com/xenking/kart-rules/internal/domain/discount"
	"github.com/xenking/kart-rules/internal/domain/shipping"
)

// Sentinel errors for checkout evaluation.
var (
	ErrNilOrder       = errors.New("order required")
	ErrDuplicateOrder = errors.New("order appears more than once in batch")
	ErrSharedItem     = errors.New("item appears more than once in batch")
)

const instrumentationName = "github.com/xenking/kart-rules/internal/checkout"

// LineResult is an item as it looks after discounts.
type LineResult struct {
	Name             string
	Price            decimal.Decimal
	SubscribeAndSave bool
	Grocery          bool
}

// Result is the outcome of evaluating one order.
type Result struct {
	OrderID string
	Prime   bool
	Items   []LineResult
	Total   decimal.Decimal
	Offer   shipping.Offer
}

// Summary renders the result as a human-readable report with prices
// rounded to cents.
func (r *Result) Summary() string {
	var b strings.Builder
	b.WriteString("Final Order Summary:\n")
	for _, item := range r.Items {
		fmt.Fprintf(&b, " - %s: $%s\n", item.Name, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: $%s\n", r.Total.StringFixed(2))
	fmt.Fprintf(&b, "Shipping: %s\n", r.Offer)
	return b.String()
}

// Option configures a Service.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the tracer provider. Defaults to a no-op provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider. Defaults to a no-op provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// Service evaluates orders against one discount chain and one shipping
// chain. Chains are read-only after construction, so a Service is safe
// for concurrent use as long as each order is evaluated by one caller.
type Service struct {
	discounts *discount.Chain
	shipping  *shipping.Chain

	tracer trace.Tracer
	offers metric.Int64Counter
	totals metric.Float64Histogram
}

// NewService creates a Service. Nil chains are replaced with empty ones.
func NewService(discounts *discount.Chain, ship *shipping.Chain, opts ...Option) (*Service, error) {
	o := options{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if discounts == nil {
		discounts = discount.NewChain()
	}
	if ship == nil {
		ship = shipping.NewChain()
	}

	meter := o.meterProvider.Meter(instrumentationName)
	offers, err := meter.Int64Counter("checkout.offers",
		metric.WithDescription("Shipping offers selected, by offer"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create offers counter")
	}
	totals, err := meter.Float64Histogram("checkout.order.total",
		metric.WithDescription("Order total after discounts"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create totals histogram")
	}

	return &Service{
		discounts: discounts,
		shipping:  ship,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
		offers:    offers,
		totals:    totals,
	}, nil
}

// DiscountRules returns the number of registered discount rules.
func (s *Service) DiscountRules() int { return s.discounts.Len() }

// ShippingRules returns the number of registered shipping rules.
func (s *Service) ShippingRules() int { return s.shipping.Len() }

// Evaluate applies the discount chain to o, then selects a shipping offer
// from the discounted order. Discounts mutate o, so an order must be
// evaluated exactly once.
func (s *Service) Evaluate(ctx context.Context, o *cart.Order) (*Result, error) {
	if o == nil {
		return nil, ErrNilOrder
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "checkout.Evaluate",
		trace.WithAttributes(
			attribute.String("order.id", o.ID()),
			attribute.Int("order.items", len(o.Items())),
		),
	)
	defer span.End()

	s.discounts.Apply(o)
	offer := s.shipping.BestOffer(o)
	total := o.Total()

	span.SetAttributes(
		attribute.String("shipping.offer", string(offer)),
		attribute.String("order.total", total.StringFixed(2)),
	)
	s.offers.Add(ctx, 1, metric.WithAttributes(attribute.String("offer", string(offer))))
	s.totals.Record(ctx, total.InexactFloat64())

	zctx.From(ctx).Debug("Order evaluated",
		zap.String("order_id", o.ID()),
		zap.Bool("prime", o.IsPrime()),
		zap.Stringer("total", total),
		zap.String("offer", string(offer)),
	)

	return newResult(o, total, offer), nil
}

// EvaluateBatch evaluates independent orders concurrently, at most
// concurrency at a time (unlimited when concurrency <= 0). Results are
// returned in input order. The first error cancels the remaining work.
//
// Orders must not share order or item pointers; such a batch is rejected
// with ErrDuplicateOrder or ErrSharedItem before anything is evaluated.
func (s *Service) EvaluateBatch(ctx context.Context, orders []*cart.Order, concurrency int) ([]*Result, error) {
	if err := checkDisjoint(orders); err != nil {
		return nil, err
	}

	results := make([]*Result, len(orders))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, o := range orders {
		g.Go(func() error {
			r, err := s.Evaluate(ctx, o)
			if err != nil {
				return errors.Wrapf(err, "evaluate order %s", o.ID())
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zctx.From(ctx).Debug("Batch evaluated", zap.Int("orders", len(orders)))
	return results, nil
}

// checkDisjoint rejects nil orders and any order or item pointer that
// occurs twice. Discounts mutate items, so a shared item would be
// discounted once per occurrence, from concurrent goroutines.
func checkDisjoint(orders []*cart.Order) error {
	seenOrders := make(map[*cart.Order]struct{}, len(orders))
	seenItems := make(map[*cart.Item]string)
	for i, o := range orders {
		if o == nil {
			return errors.Wrapf(ErrNilOrder, "order %d", i)
		}
		if _, ok := seenOrders[o]; ok {
			return errors.Wrapf(ErrDuplicateOrder, "order %d (%s)", i, o.ID())
		}
		seenOrders[o] = struct{}{}

		for _, item := range o.Items() {
			if owner, ok := seenItems[item]; ok {
				return errors.Wrapf(ErrSharedItem, "order %d (%s): item %q already in order %s", i, o.ID(), item.Name(), owner)
			}
			seenItems[item] = o.ID()
		}
	}
	return nil
}

func newResult(o *cart.Order, total decimal.Decimal, offer shipping.Offer) *Result {
	items := make([]LineResult, len(o.Items()))
	for i, item := range o.Items() {
		items[i] = LineResult{
			Name:             item.Name(),
			Price:            item.Price(),
			SubscribeAndSave: item.IsSubscribeAndSave(),
			Grocery:          item.IsGrocery(),
		}
	}
	return &Result{
		OrderID: o.ID(),
		Prime:   o.IsPrime(),
		Items:   items,
		Total:   total,
		Offer:   offer,
	}
}
