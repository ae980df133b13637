// Command catalog-import loads product feeds into the catalog.
//
// Each feed is a gzip-compressed JSON-lines file with one product per line.
// Feeds are applied in argument order and the first occurrence of a product
// ID wins. Duplicate detection takes two passes: a bloom filter flags IDs
// that may repeat, then the second pass tracks only those IDs exactly.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/storage/postgres"
)

const progressEvery = 10_000

func main() {
	var (
		databaseURL string
		workers     int
		estimate    uint
		fpr         float64
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 8, "concurrent database writers")
	flag.UintVar(&estimate, "estimate", 1_000_000, "expected number of products across all feeds")
	flag.Float64Var(&fpr, "fpr", 0.001, "bloom filter false positive rate")
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
	files := flag.Args()
	if len(files) == 0 {
		lg.Fatal("usage: catalog-import [flags] feed.jsonl.gz...")
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files, workers, estimate, fpr); err != nil {
		lg.Fatal("Catalog import failed", zap.Error(err))
	}
	lg.Info("Catalog import completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, workers int, estimate uint, fpr float64) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	lg.Info("Pass 1: scanning for duplicate IDs", zap.Int("files", len(files)))
	candidates, err := findDuplicateCandidates(ctx, files, estimate, fpr)
	if err != nil {
		return errors.Wrap(err, "find duplicates")
	}
	lg.Info("Pass 1 complete", zap.Int("candidates", len(candidates)))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	lg.Info("Pass 2: importing products", zap.Int("workers", workers))
	st, err := importFeeds(ctx, lg, postgres.NewProductRepository(pool), files, candidates, workers)
	lg.Info("Pass 2 complete",
		zap.Int("lines", st.Lines),
		zap.Int("imported", st.Imported),
		zap.Int("duplicates", st.Duplicates),
		zap.Int("invalid", st.Invalid),
	)
	if err != nil {
		return errors.Wrap(err, "import products")
	}
	return nil
}
