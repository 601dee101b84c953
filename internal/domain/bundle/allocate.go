package bundle

import (
	"slices"

	"github.com/shopspring/decimal"
)

// lineUnits is one eligible line treated as a run of identical units.
// Units of a line share a price and stay adjacent after a stable sort by price,
// so selecting over runs gives the same units as expanding every quantity.
type lineUnits struct {
	lineID string
	price  decimal.Decimal
	count  int64
}

// lineAllocation is the part of the discounted set that came from one line.
type lineAllocation struct {
	lineID string
	amount decimal.Decimal
	units  int64
}

// Allocate computes the bundle discount for the given cart lines.
//
// The most expensive eligible units are discounted first. The discount total is
// the organic price of the selected units minus bundleCount*BundlePrice, rounded
// to cents, and is split across lines by their share of the selected price.
// Amounts are rounded independently at each step and the resulting drift is
// left in place.
//
// Allocate never fails; every degenerate input yields EmptyResult.
func Allocate(lines []CartLine, cfg Configuration) Result {
	eligible := eligibleUnits(lines, cfg.VariantIDs)
	if len(eligible) == 0 {
		return EmptyResult()
	}

	bundleQuantity := int64(max(cfg.BundleQuantity, 1))
	bundlePrice := floorAtZero(cfg.BundlePrice)

	var totalUnits int64
	for _, l := range eligible {
		totalUnits += l.count
	}

	bundleCount := totalUnits / bundleQuantity
	if bundleCount <= 0 {
		return EmptyResult()
	}

	allocations, totalSelectedPrice := selectUnits(eligible, bundleCount*bundleQuantity)

	targetPrice := bundlePrice.Mul(decimal.NewFromInt(bundleCount))
	discountTotal := totalSelectedPrice.Sub(targetPrice).Round(2)
	if !discountTotal.IsPositive() {
		return EmptyResult()
	}

	discounts := distribute(allocations, totalSelectedPrice, discountTotal, cfg.Label)
	if len(discounts) == 0 {
		return EmptyResult()
	}

	return Result{
		Discounts: discounts,
		Strategy:  StrategyMaximum,
	}
}

// eligibleUnits keeps lines whose variant is configured, in cart order.
// Line counts are capped at MaxLineQuantity.
func eligibleUnits(lines []CartLine, variantIDs []string) []lineUnits {
	if len(lines) == 0 || len(variantIDs) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		allowed[id] = struct{}{}
	}

	out := make([]lineUnits, 0, len(lines))
	for _, line := range lines {
		if _, ok := allowed[line.VariantID]; !ok {
			continue
		}
		if line.Quantity <= 0 {
			continue
		}
		out = append(out, lineUnits{
			lineID: line.ID,
			price:  line.UnitPrice,
			count:  int64(min(line.Quantity, MaxLineQuantity)),
		})
	}
	return out
}

// selectUnits takes the n most expensive units. Ties keep cart order.
// The returned allocations follow the order in which lines first appear in
// the selection.
func selectUnits(eligible []lineUnits, n int64) ([]lineAllocation, decimal.Decimal) {
	sorted := slices.Clone(eligible)
	slices.SortStableFunc(sorted, func(a, b lineUnits) int {
		return b.price.Cmp(a.price)
	})

	var (
		allocations []lineAllocation
		index       = make(map[string]int, len(sorted))
		total       = decimal.Zero
	)
	for _, l := range sorted {
		if n == 0 {
			break
		}
		take := min(l.count, n)
		n -= take

		amount := l.price.Mul(decimal.NewFromInt(take))
		total = total.Add(amount)

		// The same line id may appear on several cart lines.
		if i, ok := index[l.lineID]; ok {
			allocations[i].amount = allocations[i].amount.Add(amount)
			allocations[i].units += take
			continue
		}
		index[l.lineID] = len(allocations)
		allocations = append(allocations, lineAllocation{
			lineID: l.lineID,
			amount: amount,
			units:  take,
		})
	}
	return allocations, total
}

// distribute splits discountTotal across allocations proportionally to their
// selected price. Lines whose share or per-unit amount rounds to zero get no
// discount.
func distribute(
	allocations []lineAllocation,
	totalSelectedPrice, discountTotal decimal.Decimal,
	label string,
) []Discount {
	if !totalSelectedPrice.IsPositive() {
		return nil
	}

	discounts := make([]Discount, 0, len(allocations))
	for _, a := range allocations {
		lineDiscountTotal := a.amount.Mul(discountTotal).Div(totalSelectedPrice).Round(2)
		if !lineDiscountTotal.IsPositive() {
			continue
		}

		units := decimal.NewFromInt(a.units)
		// Capped at the line's own average price.
		perUnit := decimal.Min(a.amount.Div(units), lineDiscountTotal.Div(units)).Round(2)
		// No 0.00 discounts, even though the line had a positive share.
		if !perUnit.IsPositive() {
			continue
		}

		discounts = append(discounts, Discount{
			TargetLineID:      a.lineID,
			Amount:            perUnit,
			AppliesToEachItem: true,
			Message:           label,
		})
	}
	return discounts
}
