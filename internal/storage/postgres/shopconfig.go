package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/bundle-discount/internal/domain/shopconfig"
)

var _ shopconfig.Repository = (*ShopConfigRepository)(nil)

const shopConfigColumns = `shop_domain, bundle_size, bundle_price, label, variant_ids,
	discount_node_id, created_at, updated_at`

const getShopConfig = `SELECT ` + shopConfigColumns + `
FROM shop_configs
WHERE shop_domain = $1`

const upsertShopConfig = `INSERT INTO shop_configs (
	shop_domain, bundle_size, bundle_price, label, variant_ids, discount_node_id
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (shop_domain) DO UPDATE SET
	bundle_size      = EXCLUDED.bundle_size,
	bundle_price     = EXCLUDED.bundle_price,
	label            = EXCLUDED.label,
	variant_ids      = EXCLUDED.variant_ids,
	discount_node_id = EXCLUDED.discount_node_id,
	updated_at       = now()
RETURNING ` + shopConfigColumns

const deleteShopConfig = `DELETE FROM shop_configs WHERE shop_domain = $1`

// shopConfigRow mirrors a shop_configs row.
type shopConfigRow struct {
	ShopDomain     string          `db:"shop_domain"`
	BundleSize     int32           `db:"bundle_size"`
	BundlePrice    decimal.Decimal `db:"bundle_price"`
	Label          string          `db:"label"`
	VariantIDs     []string        `db:"variant_ids"`
	DiscountNodeID string          `db:"discount_node_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r shopConfigRow) config() *shopconfig.Config {
	variants := r.VariantIDs
	if variants == nil {
		variants = []string{}
	}
	return &shopconfig.Config{
		ShopDomain:     r.ShopDomain,
		BundleSize:     int(r.BundleSize),
		BundlePrice:    r.BundlePrice,
		Label:          r.Label,
		VariantIDs:     variants,
		DiscountNodeID: r.DiscountNodeID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ShopConfigRepository implements shopconfig.Repository backed by PostgreSQL.
type ShopConfigRepository struct {
	pool *pgxpool.Pool
}

// NewShopConfigRepository returns a ShopConfigRepository that uses the given pool.
func NewShopConfigRepository(pool *pgxpool.Pool) *ShopConfigRepository {
	return &ShopConfigRepository{pool: pool}
}

// Get returns the configuration of shop, or shopconfig.ErrNotFound.
func (r *ShopConfigRepository) Get(ctx context.Context, shop string) (*shopconfig.Config, error) {
	rows, _ := r.pool.Query(ctx, getShopConfig, shop)
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[shopConfigRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shopconfig.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get shop config %q", shop)
	}
	return row.config(), nil
}

// Upsert inserts or replaces the configuration of cfg.ShopDomain and returns
// the stored row with its timestamps.
func (r *ShopConfigRepository) Upsert(ctx context.Context, cfg *shopconfig.Config) (*shopconfig.Config, error) {
	variants := cfg.VariantIDs
	if variants == nil {
		variants = []string{}
	}
	rows, _ := r.pool.Query(ctx, upsertShopConfig,
		cfg.ShopDomain,
		int32(cfg.BundleSize),
		cfg.BundlePrice,
		cfg.Label,
		variants,
		cfg.DiscountNodeID,
	)
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[shopConfigRow])
	if err != nil {
		return nil, errors.Wrapf(err, "upsert shop config %q", cfg.ShopDomain)
	}
	return row.config(), nil
}

// Delete removes the configuration of shop. Returns shopconfig.ErrNotFound
// when nothing was stored.
func (r *ShopConfigRepository) Delete(ctx context.Context, shop string) error {
	tag, err := r.pool.Exec(ctx, deleteShopConfig, shop)
	if err != nil {
		return errors.Wrapf(err, "delete shop config %q", shop)
	}
	if tag.RowsAffected() == 0 {
		return shopconfig.ErrNotFound
	}
	return nil
}
