// Command checkout-batch evaluates a file of newline-delimited JSON orders
// and writes one result per line. Files ending in .gz are read and written
// gzip-compressed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/kart-rules/internal/checkout"
	"github.com/xenking/kart-rules/internal/domain/cart"
	"github.com/xenking/kart-rules/internal/domain/discount"
	"github.com/xenking/kart-rules/internal/domain/shipping"
	"github.com/xenking/kart-rules/internal/wire"
)

const duplicateFPR = 0.001

func main() {
	var (
		in          string
		out         string
		concurrency int
	)

	flag.StringVar(&in, "in", "", "orders file, one JSON order per line (.gz for gzip)")
	flag.StringVar(&out, "out", "", "results file (default stdout, .gz for gzip)")
	flag.IntVar(&concurrency, "concurrency", 8, "max orders evaluated concurrently")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if in == "" {
		lg.Error("Input file is required: set -in")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, in, out, concurrency); err != nil {
		lg.Error("Checkout batch failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Checkout batch completed")
}

func run(ctx context.Context, in, out string, concurrency int) error {
	r, closeIn, err := openInput(in)
	if err != nil {
		return err
	}
	defer closeIn()

	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}

	if err := process(ctx, r, w, concurrency); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}

// process evaluates every order read from r and writes the results to w in
// input order.
func process(ctx context.Context, r io.Reader, w io.Writer, concurrency int) error {
	lg := zctx.From(ctx)

	orders, err := wire.ReadOrders(r)
	if err != nil {
		return errors.Wrap(err, "read orders")
	}
	lg.Info("Orders loaded", zap.Int("count", len(orders)))
	if len(orders) == 0 {
		return nil
	}

	if dup := countDuplicateIDs(orders); dup > 0 {
		lg.Warn("Probable duplicate order ids", zap.Int("count", dup))
	}

	svc, err := checkout.NewService(discount.DefaultChain(), shipping.DefaultChain())
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	results, err := svc.EvaluateBatch(ctx, orders, concurrency)
	if err != nil {
		return errors.Wrap(err, "evaluate orders")
	}

	if err := wire.WriteResults(w, results); err != nil {
		return errors.Wrap(err, "write results")
	}
	lg.Info("Results written", zap.Int("count", len(results)))
	return nil
}

// countDuplicateIDs reports how many orders carry an id already seen earlier
// in the batch. Bloom false positives can overcount, never undercount.
func countDuplicateIDs(orders []*cart.Order) int {
	seen := bloom.NewWithEstimates(uint(len(orders)), duplicateFPR)
	var dup int
	for _, o := range orders {
		if seen.TestOrAddString(o.ID()) {
			dup++
		}
	}
	return dup
}

func openInput(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, func() { _ = f.Close() }, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return gz, func() {
		_ = gz.Close()
		_ = f.Close()
	}, nil
}

// openOutput returns stdout when path is empty. The close func flushes
// compressed output and must be checked.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, f.Close, nil
	}

	gz := pgzip.NewWriter(f)
	return gz, func() error {
		if err := gz.Close(); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "flush gzip %s", path)
		}
		return f.Close()
	}, nil
}
