// Package wire encodes checkout requests and results as JSON.
//
// Request:
//
//	{"id": "o-1", "customer": {"prime": true},
//	 "items": [{"name": "Shampoo", "price": 8, "subscribeAndSave": true, "grocery": false}]}
//
// Prices may be JSON numbers or numeric strings. Money in results is
// written as a JSON number with two decimal places.
package wire

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-rules/internal/checkout"
	"github.com/xenking/kart-rules/internal/domain/cart"
)

// ErrInvalidRequest is returned for well-formed JSON that does not describe
// a valid order.
var ErrInvalidRequest = errors.New("invalid request")

// Price bounds. Anything outside them is rejected before it reaches
// decimal arithmetic, where a huge exponent costs time and memory.
const (
	maxPriceLen   = 32
	maxPriceScale = 8
	maxPriceExp   = 12
)

var maxPrice = decimal.New(1, maxPriceExp)

// SyntaxError reports JSON that could not be parsed.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return "malformed JSON: " + e.Err.Error() }
func (e *SyntaxError) Unwrap() error { return e.Err }

// IsInvalidArgument reports whether err describes a request the caller
// must fix: missing fields or a negative price.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, cart.ErrNegativePrice)
}

// classify keeps semantic errors as they are and marks everything else as
// a syntax error.
func classify(err error) error {
	if err == nil || IsInvalidArgument(err) {
		return err
	}
	var se *SyntaxError
	if errors.As(err, &se) {
		return err
	}
	return &SyntaxError{Err: err}
}

// DecodeOrder reads one order object. Trailing data is an error.
func DecodeOrder(d *jx.Decoder) (*cart.Order, error) {
	o, err := decodeOrder(d)
	if err == nil {
		err = expectEnd(d)
	}
	if err != nil {
		return nil, classify(err)
	}
	return o, nil
}

// DecodeOrders reads a JSON array of order objects.
func DecodeOrders(d *jx.Decoder) ([]*cart.Order, error) {
	var orders []*cart.Order
	err := d.Arr(func(d *jx.Decoder) error {
		o, err := decodeOrder(d)
		if err != nil {
			return errors.Wrapf(err, "order %d", len(orders))
		}
		orders = append(orders, o)
		return nil
	})
	if err == nil {
		err = expectEnd(d)
	}
	if err != nil {
		return nil, classify(err)
	}
	return orders, nil
}

// expectEnd fails unless d holds nothing but whitespace.
func expectEnd(d *jx.Decoder) error {
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after value")
	}
	return nil
}

func decodeOrder(d *jx.Decoder) (*cart.Order, error) {
	var (
		id       string
		customer cart.Customer
		items    []*cart.Item
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "id")
			}
			id = v
		case "customer":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "prime" {
					return d.Skip()
				}
				v, err := d.Bool()
				if err != nil {
					return errors.Wrap(err, "customer.prime")
				}
				customer.Prime = v
				return nil
			})
		case "items":
			items = nil
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return errors.Wrapf(err, "items[%d]", len(items))
				}
				items = append(items, item)
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart.NewOrderWithID(id, &customer, items), nil
}

func decodeItem(d *jx.Decoder) (*cart.Item, error) {
	var (
		name     string
		hasName  bool
		price    decimal.Decimal
		hasPrice bool
		opts     []cart.ItemOption
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			name, hasName = v, true
		case "price":
			v, err := decodeMoney(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			price, hasPrice = v, true
		case "subscribeAndSave":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "subscribeAndSave")
			}
			if v {
				opts = append(opts, cart.SubscribeAndSave())
			}
		case "grocery":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "grocery")
			}
			if v {
				opts = append(opts, cart.Grocery())
			}
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !hasName || name == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "name is required")
	}
	if !hasPrice {
		return nil, errors.Wrapf(ErrInvalidRequest, "price is required for %q", name)
	}
	return cart.NewItem(name, price, opts...)
}

// decodeMoney accepts a JSON number or a string holding one. Prices with
// more than maxPriceScale decimal places or above maxPrice are invalid.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		if err := d.Skip(); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, errors.Wrap(ErrInvalidRequest, "price must be a number")
	}
	if len(raw) > maxPriceLen {
		return decimal.Zero, errors.Wrapf(ErrInvalidRequest, "price is longer than %d characters", maxPriceLen)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidRequest, "price %q is not a number", raw)
	}
	if v.IsZero() {
		return decimal.Zero, nil
	}
	// The exponent must be bounded before Equal or Cmp, which rescale.
	exp := v.Exponent()
	if exp > maxPriceExp || exp < -maxPriceLen {
		return decimal.Zero, errors.Wrapf(ErrInvalidRequest, "price %q is out of range", raw)
	}
	if exp < -maxPriceScale && !v.Equal(v.Truncate(maxPriceScale)) {
		return decimal.Zero, errors.Wrapf(ErrInvalidRequest, "price %q has more than %d decimal places", raw, maxPriceScale)
	}
	if v.Abs().Cmp(maxPrice) > 0 {
		return decimal.Zero, errors.Wrapf(ErrInvalidRequest, "price %q is out of range", raw)
	}
	return v, nil
}

// EncodeResult writes r as a JSON object.
func EncodeResult(e *jx.Encoder, r *checkout.Result) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(r.OrderID)
	e.FieldStart("prime")
	e.Bool(r.Prime)
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range r.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("price")
		encodeMoney(e, item.Price)
		e.FieldStart("subscribeAndSave")
		e.Bool(item.SubscribeAndSave)
		e.FieldStart("grocery")
		e.Bool(item.Grocery)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	encodeMoney(e, r.Total)
	e.FieldStart("shipping")
	e.Str(string(r.Offer))
	e.ObjEnd()
}

// EncodeResults writes results as a JSON array.
func EncodeResults(e *jx.Encoder, results []*checkout.Result) {
	e.ArrStart()
	for _, r := range results {
		EncodeResult(e, r)
	}
	e.ArrEnd()
}

// EncodeError writes the error body shared by every endpoint.
func EncodeError(e *jx.Encoder, code int, message string) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}
