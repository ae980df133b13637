// Package rediscache provides read-through Redis caching for repositories.
package rediscache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	keyPrefix = "coupon:"
	listKey   = keyPrefix + "list"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository caches List and GetByID of the wrapped repository and
// invalidates on every write. Redis failures degrade to direct reads.
type CouponRepository struct {
	next   coupon.Repository
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCouponRepository wraps next with a cache stored in client.
func NewCouponRepository(next coupon.Repository, client redis.UniversalClient, ttl time.Duration) *CouponRepository {
	return &CouponRepository{next: next, client: client, ttl: ttl}
}

func idKey(id string) string { return keyPrefix + "id:" + id }

// List returns the cached catalog or loads and caches it.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	if data, ok := r.get(ctx, listKey); ok {
		list, err := decodeCoupons(data)
		if err == nil {
			return list, nil
		}
		zctx.From(ctx).Warn("Dropping undecodable cache entry", zap.String("key", listKey), zap.Error(err))
	}

	list, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.set(ctx, listKey, encodeCoupons(list))
	return list, nil
}

// GetByID returns the cached coupon or loads and caches it. Misses are not
// cached.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	key := idKey(id)
	if data, ok := r.get(ctx, key); ok {
		c, err := decodeOne(data)
		if err == nil {
			return c, nil
		}
		zctx.From(ctx).Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
	}

	c, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, encodeOne(c))
	return c, nil
}

// Create stores c and invalidates the cached list.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	if err := r.next.Create(ctx, c); err != nil {
		return err
	}
	r.invalidate(ctx, listKey)
	return nil
}

// Update stores c and invalidates its cached entries.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	if err := r.next.Update(ctx, c); err != nil {
		return err
	}
	r.invalidate(ctx, listKey, idKey(c.ID))
	return nil
}

// Delete removes the coupon and invalidates its cached entries.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, listKey, idKey(id))
	return nil
}

func (r *CouponRepository) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Warn("Coupon cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (r *CouponRepository) set(ctx context.Context, key string, data []byte) {
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Coupon cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *CouponRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		zctx.From(ctx).Error("Coupon cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
