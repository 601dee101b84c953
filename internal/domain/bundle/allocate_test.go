package bundle

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func line(id string, qty int, price, variant string) CartLine {
	return CartLine{ID: id, Quantity: qty, UnitPrice: d(price), VariantID: variant}
}

type wantDiscount struct {
	target string
	amount string
}

func requireDiscounts(t *testing.T, want []wantDiscount, got Result) {
	t.Helper()

	assert.Equal(t, StrategyMaximum, got.Strategy)
	require.Len(t, got.Discounts, len(want))
	for i, w := range want {
		g := got.Discounts[i]
		assert.Equal(t, w.target, g.TargetLineID, "discount %d target", i)
		assert.True(t, d(w.amount).Equal(g.Amount),
			"discount %d: expected amount %s, got %s", i, w.amount, g.Amount)
		assert.True(t, g.AppliesToEachItem)
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name  string
		lines []CartLine
		cfg   Configuration
		want  []wantDiscount
	}{
		{
			name:  "single line fills one bundle",
			lines: []CartLine{line("l1", 3, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: d("15"), VariantIDs: []string{"v1"}},
			// 20 - 15 = 5.00 over two units
			want: []wantDiscount{{target: "l1", amount: "2.50"}},
		},
		{
			name:  "not enough units for a bundle",
			lines: []CartLine{line("l1", 1, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: d("15"), VariantIDs: []string{"v1"}},
		},
		{
			name: "mixed prices split proportionally",
			lines: []CartLine{
				line("l1", 2, "5", "v1"),
				line("l2", 2, "15", "v2"),
			},
			cfg: Configuration{BundleQuantity: 2, BundlePrice: d("18"), VariantIDs: []string{"v1", "v2"}},
			// 40 - 36 = 4.00; l2 gets 3.00, l1 gets 1.00
			want: []wantDiscount{
				{target: "l2", amount: "1.50"},
				{target: "l1", amount: "0.50"},
			},
		},
		{
			name:  "bundle price equal to organic price",
			lines: []CartLine{line("l1", 2, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: d("20"), VariantIDs: []string{"v1"}},
		},
		{
			name:  "bundle price above organic price",
			lines: []CartLine{line("l1", 2, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: d("25"), VariantIDs: []string{"v1"}},
		},
		{
			name: "ineligible lines are ignored",
			lines: []CartLine{
				line("l1", 5, "100", "other"),
				line("l2", 1, "10", "v1"),
			},
			cfg: Configuration{BundleQuantity: 2, BundlePrice: d("5"), VariantIDs: []string{"v1"}},
		},
		{
			name:  "no eligible variants configured",
			lines: []CartLine{line("l1", 4, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: d("5")},
		},
		{
			name: "most expensive units are selected first",
			lines: []CartLine{
				line("l1", 1, "5", "v1"),
				line("l2", 1, "20", "v1"),
				line("l3", 1, "10", "v1"),
			},
			cfg: Configuration{BundleQuantity: 2, BundlePrice: d("20"), VariantIDs: []string{"v1"}},
			// selected 20 + 10 = 30; discount 10.00 split 6.67 / 3.33
			want: []wantDiscount{
				{target: "l2", amount: "6.67"},
				{target: "l3", amount: "3.33"},
			},
		},
		{
			name: "equal prices keep cart order",
			lines: []CartLine{
				line("l1", 1, "10", "v1"),
				line("l2", 1, "10", "v1"),
				line("l3", 1, "10", "v1"),
			},
			cfg: Configuration{BundleQuantity: 2, BundlePrice: d("15"), VariantIDs: []string{"v1"}},
			want: []wantDiscount{
				{target: "l1", amount: "2.50"},
				{target: "l2", amount: "2.50"},
			},
		},
		{
			name: "partial bundle units stay full price",
			lines: []CartLine{
				line("l1", 2, "8", "v1"),
				line("l2", 3, "4", "v1"),
			},
			cfg: Configuration{BundleQuantity: 2, BundlePrice: d("10"), VariantIDs: []string{"v1"}},
			// bundles: 2; selected 8,8,4,4 = 24; target 20; discount 4.00
			// l1: 16/24*4 = 2.67 -> 1.335 -> 1.34 per unit; l2: 8/24*4 = 1.33 -> 0.665 -> 0.67
			want: []wantDiscount{
				{target: "l1", amount: "1.34"},
				{target: "l2", amount: "0.67"},
			},
		},
		{
			name: "rounding drift is not corrected",
			lines: []CartLine{
				line("l1", 1, "10", "v1"),
				line("l2", 1, "10", "v1"),
				line("l3", 1, "10", "v1"),
			},
			cfg: Configuration{BundleQuantity: 3, BundlePrice: d("20"), VariantIDs: []string{"v1"}},
			// 10.00 split in thirds is 3.33 each, 9.99 in total
			want: []wantDiscount{
				{target: "l1", amount: "3.33"},
				{target: "l2", amount: "3.33"},
				{target: "l3", amount: "3.33"},
			},
		},
		{
			name: "line whose per-unit amount rounds to zero is omitted",
			lines: []CartLine{
				line("l1", 1, "97", "v1"),
				line("l2", 3, "1", "v1"),
			},
			cfg: Configuration{BundleQuantity: 4, BundlePrice: d("99.80"), VariantIDs: []string{"v1"}},
			// discount 0.20; l2 share 0.01 over 3 units rounds to 0.00
			want: []wantDiscount{{target: "l1", amount: "0.19"}},
		},
		{
			name:  "zero bundle price discounts selected units entirely",
			lines: []CartLine{line("l1", 3, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: decimal.Zero, VariantIDs: []string{"v1"}},
			want:  []wantDiscount{{target: "l1", amount: "10.00"}},
		},
		{
			name:  "non-positive quantity is treated as one",
			lines: []CartLine{line("l1", 2, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 0, BundlePrice: d("8"), VariantIDs: []string{"v1"}},
			// two bundles of one unit: 20 - 16 = 4.00
			want: []wantDiscount{{target: "l1", amount: "2.00"}},
		},
		{
			name:  "negative bundle price is treated as zero",
			lines: []CartLine{line("l1", 2, "10", "v1")},
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: d("-5"), VariantIDs: []string{"v1"}},
			want:  []wantDiscount{{target: "l1", amount: "10.00"}},
		},
		{
			name: "lines with non-positive quantity contribute nothing",
			lines: []CartLine{
				line("l1", 0, "50", "v1"),
				line("l2", -2, "50", "v1"),
				line("l3", 2, "10", "v1"),
			},
			cfg:  Configuration{BundleQuantity: 2, BundlePrice: d("15"), VariantIDs: []string{"v1"}},
			want: []wantDiscount{{target: "l3", amount: "2.50"}},
		},
		{
			name: "huge quantities are capped per line",
			lines: []CartLine{
				line("l1", math.MaxInt64, "10", "v1"),
				line("l2", math.MaxInt64, "10", "v1"),
			},
			cfg: Configuration{BundleQuantity: 2, BundlePrice: d("1"), VariantIDs: []string{"v1"}},
			want: []wantDiscount{
				{target: "l1", amount: "9.50"},
				{target: "l2", amount: "9.50"},
			},
		},
		{
			name: "huge quantities on three lines",
			lines: []CartLine{
				line("l1", math.MaxInt64, "10", "v1"),
				line("l2", math.MaxInt64, "10", "v1"),
				line("l3", math.MaxInt64, "10", "v1"),
			},
			cfg: Configuration{BundleQuantity: 2, BundlePrice: d("1"), VariantIDs: []string{"v1"}},
			// one unit of l3 is left out of the last bundle
			want: []wantDiscount{
				{target: "l1", amount: "9.50"},
				{target: "l2", amount: "9.50"},
				{target: "l3", amount: "9.50"},
			},
		},
		{
			name:  "empty cart",
			lines: nil,
			cfg:   Configuration{BundleQuantity: 2, BundlePrice: d("15"), VariantIDs: []string{"v1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(tt.lines, tt.cfg)
			if len(tt.want) == 0 {
				assert.True(t, got.Empty())
				assert.Equal(t, EmptyResult(), got)
				return
			}
			requireDiscounts(t, tt.want, got)
		})
	}
}

func TestAllocate_Label(t *testing.T) {
	cfg := Configuration{
		BundleQuantity: 2,
		BundlePrice:    d("15"),
		Label:          "2 for $15",
		VariantIDs:     []string{"v1"},
	}

	got := Allocate([]CartLine{line("l1", 2, "10", "v1")}, cfg)
	require.Len(t, got.Discounts, 1)
	assert.Equal(t, "2 for $15", got.Discounts[0].Message)
}

func TestAllocate_LargeQuantity(t *testing.T) {
	cfg := Configuration{BundleQuantity: 3, BundlePrice: d("2"), VariantIDs: []string{"v1"}}

	got := Allocate([]CartLine{line("l1", 1_000_000_000, "1.00", "v1")}, cfg)

	// 333333333 bundles: 999999999 - 666666666 = 333333333.00 over 999999999 units
	requireDiscounts(t, []wantDiscount{{target: "l1", amount: "0.33"}}, got)
}

func TestAllocate_Deterministic(t *testing.T) {
	lines := []CartLine{
		line("l1", 2, "12.99", "v1"),
		line("l2", 1, "7.49", "v2"),
		line("l3", 4, "12.99", "v3"),
		line("l4", 1, "3.10", "v1"),
	}
	cfg := Configuration{BundleQuantity: 3, BundlePrice: d("25"), Label: "3 for $25", VariantIDs: []string{"v1", "v2", "v3"}}

	first := Allocate(lines, cfg)
	second := Allocate(lines, cfg)
	assert.Equal(t, first, second)
}

func TestAllocate_Properties(t *testing.T) {
	lines := []CartLine{
		line("l1", 3, "19.99", "v1"),
		line("l2", 2, "4.50", "v2"),
		line("l3", 5, "7.25", "v3"),
		line("l4", 1, "0.99", "v1"),
		line("l5", 2, "7.25", "v2"),
	}
	variants := []string{"v1", "v2", "v3"}

	prices := make(map[string]decimal.Decimal, len(lines))
	for _, l := range lines {
		prices[l.ID] = l.UnitPrice
	}

	for qty := 1; qty <= 13; qty++ {
		for _, price := range []string{"0", "1", "9.99", "20", "35.50", "100"} {
			cfg := Configuration{BundleQuantity: qty, BundlePrice: d(price), VariantIDs: variants}
			got := Allocate(lines, cfg)

			assert.Equal(t, StrategyMaximum, got.Strategy)

			seen := make(map[string]bool, len(got.Discounts))
			for _, disc := range got.Discounts {
				assert.False(t, seen[disc.TargetLineID], "duplicate target %s", disc.TargetLineID)
				seen[disc.TargetLineID] = true

				assert.True(t, disc.Amount.IsPositive(), "non-positive amount %s", disc.Amount)
				assert.True(t, disc.Amount.LessThanOrEqual(prices[disc.TargetLineID]),
					"amount %s exceeds unit price %s", disc.Amount, prices[disc.TargetLineID])
			}
		}
	}
}

func TestAllocate_UnitsBelowBundleQuantity(t *testing.T) {
	lines := []CartLine{
		line("l1", 2, "10", "v1"),
		line("l2", 1, "10", "v1"),
	}
	cfg := Configuration{BundleQuantity: 4, BundlePrice: d("1"), VariantIDs: []string{"v1"}}

	assert.True(t, Allocate(lines, cfg).Empty())
}
