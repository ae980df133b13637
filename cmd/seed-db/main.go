package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/auth"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/product"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
)

var catalog = []struct {
	name, price, description string
}{
	{"Laptop", "999.99", "High-performance laptop"},
	{"Mouse", "29.99", "Wireless mouse"},
	{"Keyboard", "79.99", "Mechanical keyboard"},
	{"Monitor", "299.99", "27-inch 4K monitor"},
	{"Headphones", "149.99", "Noise-cancelling headphones"},
	{"Webcam", "89.99", "HD webcam"},
	{"USB Drive", "19.99", "64GB USB drive"},
	{"Tablet", "399.99", "10-inch tablet"},
}

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or COUPON_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COUPON_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("COUPON_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COUPON_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, apiKey, pepper string) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool)); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if apiKey == "" {
		lg.Warn("No API key given, coupon administration will be unavailable")
		return nil
	}
	if err := seedAPIKey(ctx, lg, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, products product.Repository) error {
	for i, p := range catalog {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return errors.Wrapf(err, "parse price of %s", p.name)
		}
		id := strconv.Itoa(i + 1)
		if err := products.Upsert(ctx, product.Product{
			ID:          id,
			Name:        p.name,
			Description: p.description,
			Price:       price,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", id)
		}
		lg.Info("Upserted product", zap.String("id", id), zap.String("name", p.name))
	}
	return nil
}

// sampleCoupons returns one coupon of each kind over the seeded catalog.
func sampleCoupons() []coupon.Coupon {
	minTotal := decimal.NewFromInt(100)
	return []coupon.Coupon{
		{
			ID:           "cart-10",
			Name:         "10% off carts over 100",
			Kind:         coupon.KindCartTotal,
			Mode:         coupon.ModePercentage,
			Value:        decimal.NewFromInt(10),
			Active:       true,
			MinCartTotal: &minTotal,
		},
		{
			ID:         "mouse-20",
			Name:       "20% off mice",
			Kind:       coupon.KindPerProduct,
			Mode:       coupon.ModePercentage,
			Value:      decimal.NewFromInt(20),
			Active:     true,
			ProductIDs: []string{"2"},
		},
		{
			ID:             "b2g1-peripherals",
			Name:           "Buy 2 peripherals, get a USB drive free",
			Kind:           coupon.KindBuyXGetY,
			Mode:           coupon.ModePercentage,
			Active:         true,
			BuyQuantity:    2,
			GetQuantity:    1,
			BuyProductIDs:  []string{"2", "3", "6"},
			FreeProductIDs: []string{"7"},
			MaxRepetitions: 3,
		},
	}
}

func seedCoupons(ctx context.Context, lg *zap.Logger, coupons coupon.Repository) error {
	now := time.Now().UTC()
	for _, c := range sampleCoupons() {
		if err := coupon.Validate(&c); err != nil {
			return errors.Wrapf(err, "validate coupon %s", c.ID)
		}
		c.CreatedAt = now
		c.UpdatedAt = now

		err := coupons.Update(ctx, &c)
		if errors.Is(err, coupon.ErrNotFound) {
			err = coupons.Create(ctx, &c)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.ID)
		}
		lg.Info("Upserted coupon", zap.String("id", c.ID), zap.String("kind", string(c.Kind)))
	}
	return nil
}

func seedAPIKey(ctx context.Context, lg *zap.Logger, apikeys auth.Repository, apiKey, pepper string) error {
	if err := apikeys.Create(ctx, &auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeCouponsWrite},
	}); err != nil {
		return errors.Wrap(err, "create admin API key")
	}
	lg.Info("Seeded API key", zap.String("id", "admin"))
	return nil
}
