package bundle

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// maxBundleQuantity keeps absurd configured sizes inside int range. Any cart
// would need more units than that to form a single bundle.
const maxBundleQuantity = math.MaxInt32

// MaxLineQuantity caps the units counted for a single cart line, keeping unit
// totals of any realistic cart far below the int64 range.
const MaxLineQuantity = math.MaxInt32

// RawConfiguration holds the merchant settings exactly as they were stored.
// Numeric fields keep their textual form because the stored document may carry
// numbers, numeric strings, booleans or garbage; Normalize decides what they mean.
type RawConfiguration struct {
	BundleQuantity string
	BundlePrice    string
	Label          string
	VariantIDs     []string
}

// Normalize converts raw settings into a Configuration. It never fails:
// a missing, non-numeric or non-positive bundle quantity becomes 1 and a
// missing, non-numeric or negative bundle price becomes 0.
func (r RawConfiguration) Normalize() Configuration {
	return Configuration{
		BundleQuantity: ParseBundleQuantity(r.BundleQuantity),
		BundlePrice:    ParseBundlePrice(r.BundlePrice),
		Label:          r.Label,
		VariantIDs:     r.VariantIDs,
	}
}

// ParseBundleQuantity coerces s into a bundle size of at least 1.
// Fractional sizes are truncated.
func ParseBundleQuantity(s string) int {
	v, ok := parseNumber(s)
	if !ok || !v.IsPositive() {
		return 1
	}
	if v.GreaterThan(decimal.NewFromInt(maxBundleQuantity)) {
		return maxBundleQuantity
	}
	return max(int(v.IntPart()), 1)
}

// ParseBundlePrice coerces s into a non-negative bundle price.
func ParseBundlePrice(s string) decimal.Decimal {
	v, ok := parseNumber(s)
	if !ok {
		return decimal.Zero
	}
	return floorAtZero(v)
}

// ParseLineQuantity parses a cart line quantity. Fractions are truncated and
// the result is clamped to [0, MaxLineQuantity]. Booleans are not quantities.
func ParseLineQuantity(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return clampLineQuantity(v), true
}

func clampLineQuantity(v decimal.Decimal) int {
	switch {
	case !v.IsPositive():
		return 0
	case v.GreaterThan(decimal.NewFromInt(MaxLineQuantity)):
		return MaxLineQuantity
	}
	return int(v.IntPart())
}

// ParseAmount parses a money amount such as "10.0". Unlike the configuration
// parsers it reports failure, so the caller can drop the offending line.
func ParseAmount(s string) (decimal.Decimal, bool) {
	return parseNumber(s)
}

func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return decimal.Zero, false
	case "true":
		return decimal.NewFromInt(1), true
	case "false":
		return decimal.Zero, true
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
