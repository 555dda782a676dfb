// Package shipping picks the shipping offer for an order.
//
// A Chain asks its rules in registration order and takes the first offer
// it gets. There is no notion of a "better" offer: a broad rule registered
// ahead of a narrow one hides the narrow one completely. With
// DefaultChain, PrimeTwoDay comes first, so a prime customer never sees
// OneDay or PrimeGroceryTwoHour no matter how large the order is.
package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-rules/internal/domain/cart"
)

// Offer is a shipping offer label.
type Offer string

const (
	StandardShipping   Offer = "Standard Shipping"
	FreeTwoDay         Offer = "Free 2-Day Shipping"
	FreeOneDay         Offer = "Free 1-Day Shipping"
	FreeTwoHourGrocery Offer = "Free 2-Hour Grocery Shipping"
)

// Rule returns an offer for the order, or false when it does not apply.
// Implementations must not modify the order.
type Rule interface {
	Offer(o *cart.Order) (Offer, bool)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(o *cart.Order) (Offer, bool)

// Offer calls f(o).
func (f RuleFunc) Offer(o *cart.Order) (Offer, bool) { return f(o) }

// Chain evaluates rules until one matches.
type Chain struct {
	rules []Rule
}

// NewChain creates a chain with the given rules.
func NewChain(rules ...Rule) *Chain {
	c := &Chain{}
	for _, r := range rules {
		c.Add(r)
	}
	return c
}

// Add appends a rule. It is evaluated after every rule added before it.
func (c *Chain) Add(r Rule) {
	if r == nil {
		return
	}
	c.rules = append(c.rules, r)
}

// Len returns the number of registered rules.
func (c *Chain) Len() int { return len(c.rules) }

// BestOffer returns the offer of the first matching rule. Later rules are
// not evaluated. StandardShipping is returned when nothing matches.
func (c *Chain) BestOffer(o *cart.Order) Offer {
	for _, r := range c.rules {
		if offer, ok := r.Offer(o); ok {
			return offer
		}
	}
	return StandardShipping
}

// DefaultChain returns the stock rules in their stock order.
func DefaultChain() *Chain {
	return NewChain(
		PrimeTwoDay(),
		NonPrimeTwoDay(),
		OneDay(),
		PrimeGroceryTwoHour(),
	)
}

var (
	nonPrimeTwoDayMin = decimal.NewFromInt(35)
	oneDayMin         = decimal.NewFromInt(125)
	groceryMin        = decimal.NewFromInt(25)
)

// PrimeTwoDay offers free two-day shipping to every prime customer.
func PrimeTwoDay() Rule {
	return RuleFunc(func(o *cart.Order) (Offer, bool) {
		return FreeTwoDay, o.IsPrime()
	})
}

// NonPrimeTwoDay offers free two-day shipping to non-prime customers on
// orders over $35.
func NonPrimeTwoDay() Rule {
	return RuleFunc(func(o *cart.Order) (Offer, bool) {
		return FreeTwoDay, !o.IsPrime() && o.Total().GreaterThan(nonPrimeTwoDayMin)
	})
}

// OneDay offers free one-day shipping on orders over $125.
func OneDay() Rule {
	return RuleFunc(func(o *cart.Order) (Offer, bool) {
		return FreeOneDay, o.Total().GreaterThan(oneDayMin)
	})
}

// PrimeGroceryTwoHour offers free two-hour delivery to prime customers on
// orders over $25 that contain groceries.
func PrimeGroceryTwoHour() Rule {
	return RuleFunc(func(o *cart.Order) (Offer, bool) {
		ok := o.IsPrime() && o.ContainsGroceries() && o.Total().GreaterThan(groceryMin)
		return FreeTwoHourGrocery, ok
	})
}
