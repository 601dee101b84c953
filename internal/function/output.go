package function

import (
	"github.com/go-faster/jx"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
)

// EncodeResult renders a result in the function output format. Amounts are
// written with exactly two decimals.
func EncodeResult(r bundle.Result) []byte {
	strategy := r.Strategy
	if strategy == "" {
		strategy = bundle.StrategyMaximum
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("discounts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, disc := range r.Discounts {
					encodeDiscount(e, disc)
				}
			})
		})
		e.Field("discountApplicationStrategy", func(e *jx.Encoder) {
			e.Str(string(strategy))
		})
	})
	return e.Bytes()
}

func encodeDiscount(e *jx.Encoder, disc bundle.Discount) {
	e.Obj(func(e *jx.Encoder) {
		if disc.Message != "" {
			e.Field("message", func(e *jx.Encoder) {
				e.Str(disc.Message)
			})
		}
		e.Field("targets", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("cartLine", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) {
								e.Str(disc.TargetLineID)
							})
						})
					})
				})
			})
		})
		e.Field("value", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("fixedAmount", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("amount", func(e *jx.Encoder) {
							e.Str(disc.Amount.StringFixed(2))
						})
						e.Field("appliesToEachItem", func(e *jx.Encoder) {
							e.Bool(disc.AppliesToEachItem)
						})
					})
				})
			})
		})
	})
}
