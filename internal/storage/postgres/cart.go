package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coupon-engine/internal/domain/cart"
)

const (
	insertCartSQL = `INSERT INTO carts
		(id, total_amount, total_discount, final_amount, applied_coupon_id, applied_coupon_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertCartItemSQL = `INSERT INTO cart_items
		(cart_id, position, product_id, quantity, unit_price, discount_amount, discounted_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Save assigns c a new ID and writes the cart with its line items in a
// single transaction.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	id := uuid.New()

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertCartSQL,
			id, c.TotalAmount, c.TotalDiscount, c.FinalAmount,
			c.AppliedCouponID, c.AppliedCouponName, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting cart: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range c.Items {
			batch.Queue(insertCartItemSQL,
				id, i, it.ProductID, it.Quantity, it.UnitPrice, it.DiscountAmount, it.DiscountedTotal,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting cart items: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}

	c.ID = id.String()
	return nil
}
