package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-engine/internal/domain/product"
)

const maxLineSize = 1 << 20

// importStats summarizes a pass-2 run.
type importStats struct {
	Lines      int
	Imported   int
	Duplicates int
	Invalid    int
}

// parseProduct decodes one feed line:
//
//	{"id":"1","name":"Laptop","description":"...","price":"999.99"}
//
// id and price may also be JSON numbers.
func parseProduct(line []byte) (product.Product, error) {
	var (
		p        product.Product
		hasPrice bool
	)
	d := jx.DecodeBytes(line)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := decodeScalar(d)
			p.ID = v
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			p.Description = v
			return err
		case "price":
			v, err := decodeScalar(d)
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(v)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			p.Price = price
			hasPrice = true
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return product.Product{}, errors.Wrap(err, "decode")
	}

	switch {
	case p.ID == "":
		return product.Product{}, errors.New("missing id")
	case p.Name == "":
		return product.Product{}, errors.New("missing name")
	case !hasPrice:
		return product.Product{}, errors.New("missing price")
	case p.Price.IsNegative():
		return product.Product{}, errors.New("negative price")
	}
	return p, nil
}

func decodeScalar(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("unexpected %s", tt)
	}
}

// streamFeed opens a gzip-compressed JSON-lines file and calls fn for each
// non-blank line. line is only valid until fn returns.
func streamFeed(ctx context.Context, path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// findDuplicateCandidates streams every feed once and returns the IDs the
// bloom filter had already seen. The set holds every real duplicate plus the
// filter's false positives.
func findDuplicateCandidates(ctx context.Context, files []string, estimate uint, fpr float64) (map[string]struct{}, error) {
	filter := bloom.NewWithEstimates(estimate, fpr)
	candidates := make(map[string]struct{})

	for _, path := range files {
		if err := streamFeed(ctx, path, func(_ int, line []byte) error {
			p, err := parseProduct(line)
			if err != nil {
				return nil
			}
			if filter.TestOrAddString(p.ID) {
				candidates[p.ID] = struct{}{}
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// importFeeds streams the feeds in order and upserts each product with
// workers concurrent writers. For IDs in candidates only the first
// occurrence is imported.
func importFeeds(
	ctx context.Context,
	lg *zap.Logger,
	products product.Repository,
	files []string,
	candidates map[string]struct{},
	workers int,
) (importStats, error) {
	var (
		st       importStats
		imported atomic.Int64
		queue    = make(chan product.Product, workers*4)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		taken := make(map[string]struct{}, len(candidates))

		for _, path := range files {
			if err := streamFeed(ctx, path, func(n int, line []byte) error {
				st.Lines++
				p, err := parseProduct(line)
				if err != nil {
					st.Invalid++
					lg.Warn("Skipping invalid line",
						zap.String("file", path),
						zap.Int("line", n),
						zap.Error(err),
					)
					return nil
				}
				if _, ok := candidates[p.ID]; ok {
					if _, dup := taken[p.ID]; dup {
						st.Duplicates++
						return nil
					}
					taken[p.ID] = struct{}{}
				}
				select {
				case queue <- p:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}); err != nil {
				return err
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			for p := range queue {
				if err := products.Upsert(ctx, p); err != nil {
					return errors.Wrapf(err, "upsert product %s", p.ID)
				}
				if n := imported.Add(1); n%progressEvery == 0 {
					lg.Info("Import progress", zap.Int64("imported", n))
				}
			}
			return nil
		})
	}

	err := g.Wait()
	st.Imported = int(imported.Load())
	return st, err
}
