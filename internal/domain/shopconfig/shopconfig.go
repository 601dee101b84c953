// Package shopconfig manages the merchant's bundle settings and keeps the
// automatic discount registered on the commerce platform in sync with them.
package shopconfig

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
	"github.com/xenking/bundle-discount/internal/function"
)

// ErrNotFound is returned when a shop has no saved configuration.
var ErrNotFound = errors.New("shop config not found")

// Config is the persisted bundle configuration of a shop.
type Config struct {
	ShopDomain     string
	BundleSize     int
	BundlePrice    decimal.Decimal
	Label          string
	VariantIDs     []string
	DiscountNodeID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Document returns the configuration document stored on the discount.
func (c *Config) Document() function.ConfigurationDocument {
	return function.ConfigurationDocument{
		BundleQuantity: c.BundleSize,
		BundlePrice:    c.BundlePrice,
		Label:          c.Label,
		VariantIDs:     c.VariantIDs,
	}
}

// Bundle returns the allocator configuration for c.
func (c *Config) Bundle() bundle.Configuration {
	return bundle.Configuration{
		BundleQuantity: max(c.BundleSize, 1),
		BundlePrice:    c.BundlePrice,
		Label:          c.Label,
		VariantIDs:     c.VariantIDs,
	}
}

// Repository persists shop configurations keyed by shop domain.
type Repository interface {
	Get(ctx context.Context, shop string) (*Config, error)
	Upsert(ctx context.Context, cfg *Config) (*Config, error)
	Delete(ctx context.Context, shop string) error
}

// RegisteredDiscount identifies an automatic discount on the platform.
type RegisteredDiscount struct {
	ID         string
	DiscountID string
	Title      string
}

// Registrar registers the bundle function as an automatic discount.
type Registrar interface {
	FunctionID(ctx context.Context) (string, error)
	CreateDiscount(ctx context.Context, functionID string, doc function.ConfigurationDocument) (*RegisteredDiscount, error)
	UpdateDiscount(ctx context.Context, discountID, functionID string, doc function.ConfigurationDocument) (*RegisteredDiscount, error)
}
