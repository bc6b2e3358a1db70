package ports

import (
	"context"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
)

// SweetFilter carries the optional search criteria. Nil or empty fields are
// not applied; an empty filter matches the whole catalog.
type SweetFilter struct {
	Name     string   // case-insensitive substring
	Category string   // case-insensitive substring
	MinPrice *float64 // price >= MinPrice
	MaxPrice *float64 // price <= MaxPrice
}

// IsEmpty reports whether no criterion is set.
func (f SweetFilter) IsEmpty() bool {
	return f.Name == "" && f.Category == "" && f.MinPrice == nil && f.MaxPrice == nil
}

// SweetRepository defines persistence operations for the catalog.
type SweetRepository interface {
	Create(ctx context.Context, s *domain.Sweet) (*domain.Sweet, error)
	FindByID(ctx context.Context, id string) (*domain.Sweet, error)
	// List returns sweets matching filter, newest first.
	List(ctx context.Context, filter SweetFilter) ([]*domain.Sweet, error)
	// Replace overwrites every mutable field of the sweet.
	Replace(ctx context.Context, id string, s *domain.Sweet) (*domain.Sweet, error)
	Delete(ctx context.Context, id string) error

	// Decrement atomically subtracts qty when at least qty units are in
	// stock. It returns ErrInsufficientStock without mutating otherwise.
	Decrement(ctx context.Context, id string, qty int) (*domain.Sweet, error)
	// Increment atomically adds qty.
	Increment(ctx context.Context, id string, qty int) (*domain.Sweet, error)
}

// StockMovementRepository appends to the stock audit ledger.
type StockMovementRepository interface {
	Insert(ctx context.Context, m *domain.StockMovement) error
}
