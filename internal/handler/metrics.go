package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
)

// Metrics counts evaluations and the discounts they emit.
type Metrics struct {
	evaluations metric.Int64Counter
	discounts   metric.Int64Counter
}

// NewMetrics registers the handler instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	evaluations, err := meter.Int64Counter("bundle.evaluations",
		metric.WithDescription("Number of cart evaluations"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "evaluations counter")
	}
	discounts, err := meter.Int64Counter("bundle.discounts",
		metric.WithDescription("Number of line discounts emitted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "discounts counter")
	}
	return &Metrics{evaluations: evaluations, discounts: discounts}, nil
}

func (m *Metrics) record(ctx context.Context, source string, res bundle.Result) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("discounted", !res.Empty()),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.discounts.Add(ctx, int64(len(res.Discounts)), metric.WithAttributes(attribute.String("source", source)))
}
