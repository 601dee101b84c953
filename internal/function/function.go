package function

import (
	"io"

	"github.com/go-faster/errors"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
)

// Evaluate runs the allocator for a decoded input. An input without a usable
// configuration produces an empty result.
func Evaluate(in Input) bundle.Result {
	if !in.HasConfiguration {
		return bundle.EmptyResult()
	}
	return bundle.Allocate(in.Lines, in.Configuration.Normalize())
}

// Handle decodes a function input document, evaluates it and returns the
// encoded output document.
func Handle(data []byte) ([]byte, error) {
	in, err := DecodeInput(data)
	if err != nil {
		return nil, err
	}
	return EncodeResult(Evaluate(in)), nil
}

// Run reads one input document from r and writes the output document to w.
func Run(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	out, err := Handle(data)
	if err != nil {
		return err
	}

	if _, err := w.Write(out); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}
