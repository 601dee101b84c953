// Package bundle computes "buy X items, pay Y" bundle discounts for a cart.
//
// Allocate is a pure function: it picks the highest-priced eligible units that
// fill complete bundles, computes how much cheaper the bundle price is than the
// organic price of those units, and spreads that amount back over the cart lines
// as per-unit fixed discounts.
package bundle

import (
	"github.com/shopspring/decimal"
)

// ApplicationStrategy tells the host pipeline how to combine a Result with
// discounts computed elsewhere.
type ApplicationStrategy string

// StrategyMaximum marks the result as the best candidate for the cart.
const StrategyMaximum ApplicationStrategy = "MAXIMUM"

// Configuration is the normalized bundle rule used by Allocate.
// BundleQuantity is always at least 1 and BundlePrice is never negative when
// produced by RawConfiguration.Normalize.
type Configuration struct {
	BundleQuantity int
	BundlePrice    decimal.Decimal
	Label          string
	VariantIDs     []string
}

// CartLine is one line item of the cart being evaluated.
type CartLine struct {
	ID        string
	Quantity  int
	UnitPrice decimal.Decimal
	VariantID string
}

// Discount is a fixed per-unit reduction targeting a single cart line.
type Discount struct {
	TargetLineID      string
	Amount            decimal.Decimal
	AppliesToEachItem bool
	Message           string
}

// Result is the complete output of one evaluation.
type Result struct {
	Discounts []Discount
	Strategy  ApplicationStrategy
}

// Empty reports whether the result carries no discounts.
func (r Result) Empty() bool {
	return len(r.Discounts) == 0
}

// EmptyResult returns a result without discounts.
func EmptyResult() Result {
	return Result{
		Discounts: []Discount{},
		Strategy:  StrategyMaximum,
	}
}
