// Package promotion evaluates coupons against carts and commits the chosen
// coupon's discount.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/discount"
	"github.com/xenking/coupon-engine/internal/domain/product"
)

const instrumentationName = "github.com/xenking/coupon-engine/internal/domain/promotion"

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for validity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracerProvider sets the provider used for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the provider used for service metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service is the evaluation orchestrator. It holds no per-request state.
type Service struct {
	products product.Repository
	coupons  coupon.Repository
	carts    cart.Repository
	rules    *discount.Registry

	now     func() time.Time
	tracer  trace.Tracer
	meter   metric.Meter
	applied metric.Int64Counter
}

// NewService creates a Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Repository,
	carts cart.Repository,
	rules *discount.Registry,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		products: products,
		coupons:  coupons,
		carts:    carts,
		rules:    rules,
		now:      time.Now,
		tracer:   tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:    metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	applied, err := s.meter.Int64Counter("coupon.applied",
		metric.WithDescription("Number of coupons applied to carts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applied counter")
	}
	s.applied = applied
	return s, nil
}

// loadCatalog resolves every product referenced by items in one lookup.
func (s *Service) loadCatalog(ctx context.Context, items []cart.ItemSpec) (product.Index, error) {
	products, err := s.products.GetByIDs(ctx, cart.ProductIDs(items))
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	return product.NewIndex(products), nil
}

// ListApplicable returns every active, currently valid coupon that would
// discount the cart described by items, in coupon catalog order.
func (s *Service) ListApplicable(ctx context.Context, items []cart.ItemSpec) ([]discount.Applicable, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.ListApplicable")
	defer span.End()

	if len(items) == 0 {
		return nil, cart.ErrEmptyCart
	}

	var (
		catalog product.Index
		coupons []coupon.Coupon
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = s.loadCatalog(gctx, items)
		return err
	})
	g.Go(func() error {
		var err error
		coupons, err = s.coupons.List(gctx)
		if err != nil {
			return errors.Wrap(err, "list coupons")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ct, err := cart.Build(items, catalog)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]discount.Applicable, 0, len(coupons))
	for i := range coupons {
		c := &coupons[i]
		if !c.Active || !c.ValidAt(now) {
			continue
		}
		rule, err := s.rules.Rule(c.Kind)
		if err != nil {
			zctx.From(ctx).Error("Coupon kind has no rule",
				zap.String("coupon_id", c.ID),
				zap.String("kind", string(c.Kind)),
			)
			return nil, errors.Wrapf(err, "coupon %s", c.ID)
		}
		if a, ok := rule.Check(c, ct); ok {
			out = append(out, *a)
		}
	}

	span.SetAttributes(
		attribute.Int("coupons.evaluated", len(coupons)),
		attribute.Int("coupons.applicable", len(out)),
	)
	return out, nil
}

// Apply validates couponID against the cart described by items, writes the
// discount onto the line items and totals, and persists the cart. Nothing is
// mutated or saved unless every check passes.
func (s *Service) Apply(ctx context.Context, couponID string, items []cart.ItemSpec) (*cart.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.Apply",
		trace.WithAttributes(attribute.String("coupon.id", couponID)),
	)
	defer span.End()

	c, err := s.coupons.GetByID(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if err := c.Usable(s.now()); err != nil {
		return nil, err
	}

	rule, err := s.rules.Rule(c.Kind)
	if err != nil {
		zctx.From(ctx).Error("Coupon kind has no rule",
			zap.String("coupon_id", c.ID),
			zap.String("kind", string(c.Kind)),
		)
		return nil, errors.Wrapf(err, "coupon %s", c.ID)
	}

	if len(items) == 0 {
		return nil, cart.ErrEmptyCart
	}
	catalog, err := s.loadCatalog(ctx, items)
	if err != nil {
		return nil, err
	}
	ct, err := cart.Build(items, catalog)
	if err != nil {
		return nil, err
	}

	if _, ok := rule.Check(c, ct); !ok {
		return nil, coupon.ErrNotApplicable
	}

	rule.Apply(c, ct)
	ct.Settle()
	ct.AppliedCouponID = c.ID
	ct.AppliedCouponName = c.Name
	ct.CreatedAt = s.now()

	if err := s.carts.Save(ctx, ct); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	s.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(c.Kind))))
	zctx.From(ctx).Info("Coupon applied",
		zap.String("coupon_id", c.ID),
		zap.String("cart_id", ct.ID),
		zap.Stringer("total", ct.TotalAmount),
		zap.Stringer("discount", ct.TotalDiscount),
	)
	return ct, nil
}
