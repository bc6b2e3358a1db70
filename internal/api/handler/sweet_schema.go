package handler

import (
	"time"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
)

// errorResponse is the error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// sweetRequest is the body of create and full-replace update. Price and
// quantity are pointers so that an explicit 0 is distinguishable from absence.
type sweetRequest struct {
	Name        string   `json:"name"        validate:"required"`
	Category    string   `json:"category"    validate:"required"`
	Price       *float64 `json:"price"       validate:"required,gte=0"`
	Quantity    *int     `json:"quantity"    validate:"required,gte=0"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
}

// purchaseRequest requires an explicit, positive quantity.
type purchaseRequest struct {
	Quantity *int `json:"quantity" validate:"required,gt=0"`
}

type restockRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// sweetResponse is owned by the transport layer so the JSON contract is not
// coupled to the domain type.
type sweetResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type sweetEnvelope struct {
	Message string        `json:"message,omitempty"`
	Sweet   sweetResponse `json:"sweet"`
}

type sweetListResponse struct {
	Sweets []sweetResponse `json:"sweets"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toSweetResponse(s *domain.Sweet) sweetResponse {
	return sweetResponse{
		ID:          s.ID,
		Name:        s.Name,
		Category:    s.Category,
		Price:       s.Price,
		Quantity:    s.Quantity,
		Description: s.Description,
		ImageURL:    s.ImageURL,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func toSweetList(sweets []*domain.Sweet) sweetListResponse {
	out := make([]sweetResponse, len(sweets))
	for i, s := range sweets {
		out[i] = toSweetResponse(s)
	}
	return sweetListResponse{Sweets: out}
}
