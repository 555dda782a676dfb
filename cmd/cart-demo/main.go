// Command cart-demo evaluates one scripted order with the stock rule chains
// and prints the resulting summary.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-rules/internal/checkout"
	"github.com/xenking/kart-rules/internal/domain/cart"
	"github.com/xenking/kart-rules/internal/domain/discount"
	"github.com/xenking/kart-rules/internal/domain/shipping"
)

func main() {
	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(zctx.Base(ctx, lg), os.Stdout); err != nil {
		lg.Error("Demo failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer) error {
	o, err := demoOrder()
	if err != nil {
		return errors.Wrap(err, "build order")
	}

	svc, err := checkout.NewService(discount.DefaultChain(), shipping.DefaultChain())
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	res, err := svc.Evaluate(ctx, o)
	if err != nil {
		return errors.Wrap(err, "evaluate order")
	}

	if _, err := fmt.Fprintf(out, "Order total after discounts: $%s\nShipping offer: %s\n%s",
		res.Total.StringFixed(2), res.Offer, res.Summary()); err != nil {
		return errors.Wrap(err, "write summary")
	}
	return nil
}

// demoOrder is a prime customer buying a laptop, bananas and
// subscribe-and-save shampoo.
func demoOrder() (*cart.Order, error) {
	lines := []struct {
		name  string
		price int64
		opts  []cart.ItemOption
	}{
		{name: "Laptop", price: 1500},
		{name: "Bananas", price: 5, opts: []cart.ItemOption{cart.Grocery()}},
		{name: "Shampoo", price: 8, opts: []cart.ItemOption{cart.SubscribeAndSave()}},
	}

	items := make([]*cart.Item, 0, len(lines))
	for _, l := range lines {
		item, err := cart.NewItem(l.name, decimal.NewFromInt(l.price), l.opts...)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return cart.NewOrder(&cart.Customer{Prime: true}, items), nil
}
