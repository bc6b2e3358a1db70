package domain

import "time"

// MovementKind distinguishes the two quantity-delta operations.
type MovementKind string

const (
	MovementPurchase MovementKind = "purchase"
	MovementRestock  MovementKind = "restock"
)

// StockMovement is an audit record of a successful purchase or restock.
type StockMovement struct {
	SweetID       string
	Kind          MovementKind
	Quantity      int
	QuantityAfter int
	ActorID       string
	ActorRole     Role
	CreatedAt     time.Time
}
