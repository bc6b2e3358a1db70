package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
	"github.com/sweetshop/sweet-shop-api/internal/core/ports"
)

const collectionSweets = "sweets"

type SweetRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewSweetRepository(db *mongo.Database) *SweetRepository {
	return &SweetRepository{col: db.Collection(collectionSweets), now: time.Now}
}

type mongoSweet struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Category    string             `bson:"category"`
	Price       float64            `bson:"price"`
	Quantity    int                `bson:"quantity"`
	Description string             `bson:"description,omitempty"`
	ImageURL    string             `bson:"image_url,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (ms mongoSweet) toDomain() *domain.Sweet {
	return &domain.Sweet{
		ID:          ms.ID.Hex(),
		Name:        ms.Name,
		Category:    ms.Category,
		Price:       ms.Price,
		Quantity:    ms.Quantity,
		Description: ms.Description,
		ImageURL:    ms.ImageURL,
		CreatedAt:   ms.CreatedAt.UTC(),
		UpdatedAt:   ms.UpdatedAt.UTC(),
	}
}

// Create inserts a new sweet document and returns it with its assigned id.
func (r *SweetRepository) Create(ctx context.Context, s *domain.Sweet) (*domain.Sweet, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoSweet{
		ID:          primitive.NewObjectID(),
		Name:        s.Name,
		Category:    s.Category,
		Price:       s.Price,
		Quantity:    s.Quantity,
		Description: s.Description,
		ImageURL:    s.ImageURL,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert sweet: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *SweetRepository) FindByID(ctx context.Context, id string) (*domain.Sweet, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ms mongoSweet
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&ms); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSweetNotFound
		}
		return nil, fmt.Errorf("find sweet: %w", err)
	}
	return ms.toDomain(), nil
}

// List returns sweets matching the filter, most recently created first.
func (r *SweetRepository) List(ctx context.Context, f ports.SweetFilter) ([]*domain.Sweet, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, buildListFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list sweets: %w", err)
	}

	var docs []mongoSweet
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sweets: %w", err)
	}

	out := make([]*domain.Sweet, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// Replace overwrites every caller-owned field; created_at is preserved.
func (r *SweetRepository) Replace(ctx context.Context, id string, s *domain.Sweet) (*domain.Sweet, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"name":       s.Name,
		"category":   s.Category,
		"price":      s.Price,
		"quantity":   s.Quantity,
		"updated_at": s.UpdatedAt,
	}
	update := bson.M{"$set": set}

	// Empty optional fields are removed rather than stored as "".
	unset := bson.M{}
	if s.Description != "" {
		set["description"] = s.Description
	} else {
		unset["description"] = ""
	}
	if s.ImageURL != "" {
		set["image_url"] = s.ImageURL
	} else {
		unset["image_url"] = ""
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, update)
}

func (r *SweetRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete sweet: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrSweetNotFound
	}
	return nil
}

// Decrement subtracts qty in a single conditional update: the filter only
// matches while quantity >= qty, so concurrent purchases cannot oversell.
func (r *SweetRepository) Decrement(ctx context.Context, id string, qty int) (*domain.Sweet, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "quantity": bson.M{"$gte": qty}}
	update := bson.M{
		"$inc": bson.M{"quantity": -qty},
		"$set": bson.M{"updated_at": r.now().UTC()},
	}

	s, err := r.findOneAndUpdate(ctx, filter, update)
	if !errors.Is(err, domain.ErrSweetNotFound) {
		return s, err
	}

	// Nothing matched: either the sweet is gone or stock was short.
	exists, cerr := r.exists(ctx, oid)
	if cerr != nil {
		return nil, cerr
	}
	if exists {
		return nil, domain.ErrInsufficientStock
	}
	return nil, domain.ErrSweetNotFound
}

// Increment adds qty. There is no business cap; the filter only refuses an
// increment that would overflow the stored int64.
func (r *SweetRepository) Increment(ctx context.Context, id string, qty int) (*domain.Sweet, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$inc": bson.M{"quantity": qty},
		"$set": bson.M{"updated_at": r.now().UTC()},
	}

	s, err := r.findOneAndUpdate(ctx, incrementFilter(oid, qty), update)
	if !errors.Is(err, domain.ErrSweetNotFound) {
		return s, err
	}

	exists, cerr := r.exists(ctx, oid)
	if cerr != nil {
		return nil, cerr
	}
	if exists {
		return nil, domain.Validationf("quantity %d would overflow the stock count", qty)
	}
	return nil, domain.ErrSweetNotFound
}

// incrementFilter matches the sweet only while quantity+qty fits in an int64.
func incrementFilter(oid primitive.ObjectID, qty int) bson.M {
	return bson.M{"_id": oid, "quantity": bson.M{"$lte": int64(math.MaxInt64) - int64(qty)}}
}

// EnsureIndexes creates the indexes backing listing order and search.
func (r *SweetRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *SweetRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*domain.Sweet, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ms mongoSweet
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ms); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSweetNotFound
		}
		return nil, fmt.Errorf("update sweet: %w", err)
	}
	return ms.toDomain(), nil
}

func (r *SweetRepository) exists(ctx context.Context, oid primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count sweet: %w", err)
	}
	return n > 0, nil
}

// buildListFilter translates the typed filter into a Mongo query document.
// Text criteria are escaped so user input is matched literally.
func buildListFilter(f ports.SweetFilter) bson.M {
	filter := bson.M{}
	if f.Name != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Name), Options: "i"}
	}
	if f.Category != "" {
		filter["category"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Category), Options: "i"}
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price"] = price
	}
	return filter
}

// parseID treats malformed ids as unknown sweets.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrSweetNotFound
	}
	return oid, nil
}
