package wire

import (
	"bufio"
	"bytes"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-rules/internal/checkout"
	"github.com/xenking/kart-rules/internal/domain/cart"
)

const maxLineSize = 4 << 20

// ReadOrders reads one order per line. Blank lines are skipped.
func ReadOrders(r io.Reader) ([]*cart.Order, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)

	var (
		orders []*cart.Order
		line   int
	)
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		o, err := DecodeOrder(jx.DecodeBytes(b))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		orders = append(orders, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	return orders, nil
}

// WriteResults writes one result per line.
func WriteResults(w io.Writer, results []*checkout.Result) error {
	var e jx.Encoder
	for _, r := range results {
		e.Reset()
		EncodeResult(&e, r)
		if _, err := w.Write(append(e.Bytes(), '\n')); err != nil {
			return errors.Wrapf(err, "write result %s", r.OrderID)
		}
	}
	return nil
}
