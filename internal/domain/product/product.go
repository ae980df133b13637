package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// NotFoundError identifies the missing product. It matches ErrNotFound.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Is reports ErrNotFound as the sentinel for this error.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
}

// Repository defines read and seed operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Upsert(ctx context.Context, p Product) error
}

// Index maps product IDs to products.
type Index map[string]Product

// NewIndex builds an Index from a product slice. Later duplicates win.
func NewIndex(products []Product) Index {
	idx := make(Index, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

// Lookup returns the product for id or a *NotFoundError.
func (idx Index) Lookup(id string) (Product, error) {
	p, ok := idx[id]
	if !ok {
		return Product{}, &NotFoundError{ProductID: id}
	}
	return p, nil
}
