package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const couponColumns = `id, name, kind, mode, value, active, starts_at, ends_at,
		min_cart_total, product_ids, buy_quantity, get_quantity,
		buy_product_ids, free_product_ids, max_repetitions, created_at, updated_at`

const (
	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at, id`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	insertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	updateCouponSQL = `UPDATE coupons SET
		name = $2, kind = $3, mode = $4, value = $5, active = $6, starts_at = $7, ends_at = $8,
		min_cart_total = $9, product_ids = $10, buy_quantity = $11, get_quantity = $12,
		buy_product_ids = $13, free_product_ids = $14, max_repetitions = $15, updated_at = $17
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// List returns every coupon in creation order.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// GetByID returns the coupon with the given ID or coupon.ErrNotFound.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}
	return &c, nil
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	if _, err := r.pool.Exec(ctx, insertCouponSQL, couponArgs(c)...); err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.ID, err)
	}
	return nil
}

// Update overwrites the stored coupon. It returns coupon.ErrNotFound when no
// row matches c.ID.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL, couponArgs(c)...)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes the coupon with the given ID.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// couponArgs returns the positional arguments in couponColumns order.
func couponArgs(c *coupon.Coupon) []any {
	var minTotal decimal.NullDecimal
	if c.MinCartTotal != nil {
		minTotal = decimal.NewNullDecimal(*c.MinCartTotal)
	}
	return []any{
		c.ID, c.Name, string(c.Kind), string(c.Mode), c.Value, c.Active, c.StartsAt, c.EndsAt,
		minTotal, nonNil(c.ProductIDs), c.BuyQuantity, c.GetQuantity,
		nonNil(c.BuyProductIDs), nonNil(c.FreeProductIDs), c.MaxRepetitions, c.CreatedAt, c.UpdatedAt,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c        coupon.Coupon
		kind     string
		mode     string
		minTotal decimal.NullDecimal
		buyQty   int32
		getQty   int32
		maxReps  int32
	)
	err := row.Scan(
		&c.ID, &c.Name, &kind, &mode, &c.Value, &c.Active, &c.StartsAt, &c.EndsAt,
		&minTotal, &c.ProductIDs, &buyQty, &getQty,
		&c.BuyProductIDs, &c.FreeProductIDs, &maxReps, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Kind = coupon.Kind(kind)
	c.Mode = coupon.Mode(mode)
	if minTotal.Valid {
		c.MinCartTotal = &minTotal.Decimal
	}
	c.BuyQuantity = int(buyQty)
	c.GetQuantity = int(getQty)
	c.MaxRepetitions = int(maxReps)
	return c, err
}
