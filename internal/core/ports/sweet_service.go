package ports

import (
	"context"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
)

// SweetInput holds every caller-supplied field of a sweet. Used for both
// create and full replace.
type SweetInput struct {
	Name        string
	Category    string
	Price       float64
	Quantity    int
	Description string
	ImageURL    string
}

// SearchInput carries raw search bounds before validation.
type SearchInput struct {
	Name     string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// StockInput is a purchase or restock request.
type StockInput struct {
	SweetID  string
	Quantity int
	Actor    *domain.Identity
}

// SweetService defines the inventory use cases.
type SweetService interface {
	Create(ctx context.Context, input SweetInput) (*domain.Sweet, error)
	Get(ctx context.Context, id string) (*domain.Sweet, error)
	List(ctx context.Context) ([]*domain.Sweet, error)
	Search(ctx context.Context, input SearchInput) ([]*domain.Sweet, error)
	Update(ctx context.Context, id string, input SweetInput) (*domain.Sweet, error)
	Delete(ctx context.Context, id string) error
	Purchase(ctx context.Context, input StockInput) (*domain.Sweet, error)
	Restock(ctx context.Context, input StockInput) (*domain.Sweet, error)
}
