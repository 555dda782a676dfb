// Package cart holds the order aggregate that discount and shipping rules
// operate on.
package cart

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNegativePrice is returned when an item is constructed with a price
// below zero.
var ErrNegativePrice = errors.New("price must not be negative")

var one = decimal.NewFromInt(1)

// Customer is the buyer an order is evaluated for.
type Customer struct {
	Prime bool
}

// Item is a single order line. Its price may only be lowered, through
// Discount.
type Item struct {
	name             string
	price            decimal.Decimal
	subscribeAndSave bool
	grocery          bool
}

// ItemOption sets an optional item flag.
type ItemOption func(*Item)

// SubscribeAndSave marks the item as eligible for subscribe-and-save.
func SubscribeAndSave() ItemOption {
	return func(i *Item) { i.subscribeAndSave = true }
}

// Grocery marks the item as a grocery item.
func Grocery() ItemOption {
	return func(i *Item) { i.grocery = true }
}

// NewItem creates an item. It returns ErrNegativePrice when price is below
// zero.
func NewItem(name string, price decimal.Decimal, opts ...ItemOption) (*Item, error) {
	if price.IsNegative() {
		return nil, errors.Wrapf(ErrNegativePrice, "item %q", name)
	}
	i := &Item{name: name, price: price}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

func (i *Item) Name() string             { return i.name }
func (i *Item) Price() decimal.Decimal   { return i.price }
func (i *Item) IsSubscribeAndSave() bool { return i.subscribeAndSave }
func (i *Item) IsGrocery() bool          { return i.grocery }

// Discount multiplies the item price by factor. The factor is clamped to
// [0, 1] so the price never grows and never drops below zero.
//
// Discount is not idempotent: two calls with 0.9 leave 0.81 of the price.
func (i *Item) Discount(factor decimal.Decimal) {
	switch {
	case factor.IsNegative():
		factor = decimal.Zero
	case factor.GreaterThan(one):
		factor = one
	}
	i.price = i.price.Mul(factor)
}

// Order is a customer's set of items. The customer is shared, the items
// are owned by the order.
type Order struct {
	id       string
	customer *Customer
	items    []*Item
}

// NewOrder creates an order with a fresh random ID.
func NewOrder(customer *Customer, items []*Item) *Order {
	return NewOrderWithID(uuid.New().String(), customer, items)
}

// NewOrderWithID creates an order with a caller-supplied ID. An empty id
// gets a random one. The items slice is copied; the items themselves are
// not, so one *Item must not be placed in two orders that are evaluated.
func NewOrderWithID(id string, customer *Customer, items []*Item) *Order {
	if id == "" {
		id = uuid.New().String()
	}
	if customer == nil {
		customer = &Customer{}
	}
	return &Order{id: id, customer: customer, items: slices.Clone(items)}
}

func (o *Order) ID() string          { return o.id }
func (o *Order) Customer() *Customer { return o.customer }
func (o *Order) Items() []*Item      { return o.items }
func (o *Order) IsPrime() bool       { return o.customer.Prime }

// Total returns the sum of the current item prices. It is computed on
// every call since discounts change prices after the order is built.
func (o *Order) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.items {
		sum = sum.Add(item.price)
	}
	return sum
}

// ContainsGroceries reports whether any item is a grocery item.
func (o *Order) ContainsGroceries() bool {
	for _, item := range o.items {
		if item.grocery {
			return true
		}
	}
	return false
}
