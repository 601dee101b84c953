package function

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
)

// Metafield coordinates under which the configuration document is stored on
// the automatic discount.
const (
	MetafieldNamespace = "x_for_y_discount"
	MetafieldKey       = "configuration"
	MetafieldType      = "json"
)

// ConfigurationDocument is the configuration as the merchant saved it.
type ConfigurationDocument struct {
	BundleQuantity int
	BundlePrice    decimal.Decimal
	Label          string
	VariantIDs     []string
}

// EncodeConfiguration renders the configuration document stored in the
// discount metafield and read back by DecodeConfiguration.
func EncodeConfiguration(doc ConfigurationDocument) string {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("bundleQuantity", func(e *jx.Encoder) {
			e.Int(doc.BundleQuantity)
		})
		e.Field("bundlePrice", func(e *jx.Encoder) {
			e.RawStr(doc.BundlePrice.String())
		})
		e.Field("label", func(e *jx.Encoder) {
			e.Str(doc.Label)
		})
		e.Field("variantIds", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range doc.VariantIDs {
					e.Str(id)
				}
			})
		})
	})
	return string(e.Bytes())
}

// DecodeConfiguration parses a configuration document leniently: numeric
// fields keep whatever scalar was stored and are normalized later, and
// non-string variant ids are ignored.
func DecodeConfiguration(data []byte) (bundle.RawConfiguration, error) {
	var cfg bundle.RawConfiguration
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return cfg, errors.New("configuration is not an object")
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "bundleQuantity":
			cfg.BundleQuantity, err = scalarText(d)
		case "bundlePrice":
			cfg.BundlePrice, err = scalarText(d)
		case "label":
			cfg.Label, err = scalarText(d)
		case "variantIds":
			cfg.VariantIDs, err = decodeStrings(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return bundle.RawConfiguration{}, errors.Wrap(err, "decode configuration")
	}
	return cfg, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() != jx.Array {
		return nil, d.Skip()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
