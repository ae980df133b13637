package promotion

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// CreateCoupon validates c, assigns its identity and timestamps, and stores
// it. A coupon without a name gets a generated one.
func (s *Service) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	now := s.now()
	if c.Name == "" {
		c.Name = coupon.DefaultName(c.Kind, now)
	}
	if err := coupon.Validate(c); err != nil {
		return err
	}

	c.ID = uuid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.coupons.Create(ctx, c); err != nil {
		return errors.Wrap(err, "create coupon")
	}

	zctx.From(ctx).Info("Coupon created",
		zap.String("coupon_id", c.ID),
		zap.String("kind", string(c.Kind)),
	)
	return nil
}

// UpdateCoupon replaces the stored definition of c.ID with c.
func (s *Service) UpdateCoupon(ctx context.Context, c *coupon.Coupon) error {
	existing, err := s.coupons.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if c.Name == "" {
		c.Name = existing.Name
	}
	if err := coupon.Validate(c); err != nil {
		return err
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	if err := s.coupons.Update(ctx, c); err != nil {
		return errors.Wrap(err, "update coupon")
	}
	return nil
}

// GetCoupon returns the coupon with the given ID or coupon.ErrNotFound.
func (s *Service) GetCoupon(ctx context.Context, id string) (*coupon.Coupon, error) {
	return s.coupons.GetByID(ctx, id)
}

// ListCoupons returns the whole coupon catalog.
func (s *Service) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	coupons, err := s.coupons.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// DeleteCoupon removes the coupon or returns coupon.ErrNotFound.
func (s *Service) DeleteCoupon(ctx context.Context, id string) error {
	return s.coupons.Delete(ctx, id)
}
