// Package function implements the discount function's JSON contract: it decodes
// the cart snapshot and merchant configuration handed over by the host
// pipeline, runs the bundle allocator and encodes the resulting discounts.
package function

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
)

// Input is a decoded function invocation.
type Input struct {
	Lines         []bundle.CartLine
	Configuration bundle.RawConfiguration
	// HasConfiguration is false when the invocation carried no usable
	// configuration document.
	HasConfiguration bool
}

// DecodeInput parses a function input document.
//
// The configuration is read from discountNode.metafield.value (a JSON string
// holding the configuration document) or from a top-level "configuration"
// object. A malformed configuration is treated as missing. Lines whose unit
// price cannot be parsed are dropped.
func DecodeInput(data []byte) (Input, error) {
	var in Input
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "cart":
			return decodeCart(d, &in)
		case "discountNode":
			return decodeDiscountNode(d, &in)
		case "configuration":
			raw, err := d.Raw()
			if err != nil {
				return errors.Wrap(err, "configuration")
			}
			in.applyConfiguration(raw)
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return Input{}, errors.Wrap(err, "decode input")
	}
	return in, nil
}

func (in *Input) applyConfiguration(raw []byte) {
	cfg, err := DecodeConfiguration(raw)
	if err != nil {
		return
	}
	in.Configuration = cfg
	in.HasConfiguration = true
}

func decodeCart(d *jx.Decoder, in *Input) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "lines" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			l, ok, err := decodeLine(d)
			if err != nil {
				return err
			}
			if ok {
				in.Lines = append(in.Lines, l)
			}
			return nil
		})
	})
}

func decodeLine(d *jx.Decoder) (bundle.CartLine, bool, error) {
	var (
		l      bundle.CartLine
		amount string
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			l.ID = v
			return err
		case "quantity":
			v, err := scalarText(d)
			if err != nil {
				return err
			}
			if q, ok := bundle.ParseLineQuantity(v); ok {
				l.Quantity = q
			}
			return nil
		case "cost":
			return decodePath(d, []string{"amountPerQuantity", "amount"}, func(d *jx.Decoder) error {
				v, err := scalarText(d)
				amount = v
				return err
			})
		case "merchandise":
			return decodePath(d, []string{"id"}, func(d *jx.Decoder) error {
				v, err := d.Str()
				l.VariantID = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return bundle.CartLine{}, false, errors.Wrap(err, "cart line")
	}

	price, ok := bundle.ParseAmount(amount)
	if !ok {
		return bundle.CartLine{}, false, nil
	}
	l.UnitPrice = price
	return l, true, nil
}

func decodeDiscountNode(d *jx.Decoder, in *Input) error {
	return decodePath(d, []string{"metafield", "value"}, func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		in.applyConfiguration([]byte(v))
		return nil
	})
}

// decodePath walks nested objects along path and calls fn on the value found
// at its end. Missing keys and null objects are skipped.
func decodePath(d *jx.Decoder, path []string, fn func(d *jx.Decoder) error) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != path[0] {
			return d.Skip()
		}
		if len(path) == 1 {
			return fn(d)
		}
		return decodePath(d, path[1:], fn)
	})
}

// scalarText returns the textual form of a JSON scalar: numbers as written,
// strings unquoted, booleans as "true"/"false" and null as "".
// Arrays and objects are skipped and yield "".
func scalarText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.String:
		return d.Str()
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return "", err
		}
		if b {
			return "true", nil
		}
		return "false", nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}
