// Package discount lowers item prices in an order.
//
// Rules in a Chain are independent and all of them run: nothing stops a
// second rule from discounting an item the first one already touched. Two
// rules that target the same items compound, so pick registrations with
// that in mind. Applying a chain twice to one order compounds as well;
// apply it exactly once.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-rules/internal/domain/cart"
)

// Rule mutates the prices of the items it applies to.
type Rule interface {
	ApplyDiscount(o *cart.Order)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(o *cart.Order)

// ApplyDiscount calls f(o).
func (f RuleFunc) ApplyDiscount(o *cart.Order) { f(o) }

// Chain applies its rules in registration order.
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

// Add appends a rule. Nil rules are ignored.
func (c *Chain) Add(r Rule) {
	if r == nil {
		return
	}
	c.rules = append(c.rules, r)
}

// Len returns the number of registered rules.
func (c *Chain) Len() int { return len(c.rules) }

// Apply runs every rule against o, in order.
func (c *Chain) Apply(o *cart.Order) {
	for _, r := range c.rules {
		r.ApplyDiscount(o)
	}
}

// DefaultChain returns the stock discount chain: subscribe-and-save only.
func DefaultChain() *Chain {
	return NewChain(NewSubscribeAndSave())
}

// SubscribeAndSave takes a percentage off every subscribe-and-save item.
type SubscribeAndSave struct {
	// Percent is the reduction, 10 means 10% off.
	Percent decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewSubscribeAndSave returns the 10% subscribe-and-save rule.
func NewSubscribeAndSave() *SubscribeAndSave {
	return &SubscribeAndSave{Percent: decimal.NewFromInt(10)}
}

// ApplyDiscount implements Rule.
func (s *SubscribeAndSave) ApplyDiscount(o *cart.Order) {
	factor := hundred.Sub(s.Percent).Div(hundred)
	for _, item := range o.Items() {
		if item.IsSubscribeAndSave() {
			item.Discount(factor)
		}
	}
}
