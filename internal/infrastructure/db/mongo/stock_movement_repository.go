package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
	"github.com/sweetshop/sweet-shop-api/internal/core/ports"
)

const collectionStockMovements = "stock_movements"

var _ ports.StockMovementRepository = (*StockMovementRepository)(nil)

// StockMovementRepository implements ports.StockMovementRepository using MongoDB.
type StockMovementRepository struct {
	col *mongo.Collection
}

// NewStockMovementRepository creates a new StockMovementRepository.
func NewStockMovementRepository(db *mongo.Database) *StockMovementRepository {
	return &StockMovementRepository{col: db.Collection(collectionStockMovements)}
}

// Insert appends a movement to the stock_movements audit collection.
func (r *StockMovementRepository) Insert(ctx context.Context, m *domain.StockMovement) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"sweet_id":       m.SweetID,
		"kind":           string(m.Kind),
		"quantity":       m.Quantity,
		"quantity_after": m.QuantityAfter,
		"created_at":     m.CreatedAt.UTC(),
	}
	if oid, err := primitive.ObjectIDFromHex(m.SweetID); err == nil {
		doc["sweet_id"] = oid
	}
	if m.ActorID != "" {
		doc["actor"] = bson.M{
			"id":   m.ActorID,
			"role": string(m.ActorRole),
		}
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}

// EnsureIndexes indexes movements by sweet and time.
func (r *StockMovementRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sweet_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
