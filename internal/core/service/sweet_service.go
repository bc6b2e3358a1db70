package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
	"github.com/sweetshop/sweet-shop-api/internal/core/ports"
	"github.com/sweetshop/sweet-shop-api/internal/pkg/metrics"
)

// CatalogCache abstracts the cached full catalog listing (Redis).
// Invalidate advances the catalog generation; Set stores a listing only
// while the generation it was read under is still current.
type CatalogCache interface {
	Get(ctx context.Context) ([]*domain.Sweet, bool, error)
	Version(ctx context.Context) (int64, error)
	Set(ctx context.Context, version int64, sweets []*domain.Sweet) error
	Invalidate(ctx context.Context) error
}

type SweetService struct {
	repo      ports.SweetRepository
	movements ports.StockMovementRepository
	cache     CatalogCache
	log       zerolog.Logger
	now       func() time.Time
}

func NewSweetService(
	repo ports.SweetRepository,
	movements ports.StockMovementRepository,
	cache CatalogCache,
	log zerolog.Logger,
) *SweetService {
	return &SweetService{
		repo:      repo,
		movements: movements,
		cache:     cache,
		log:       log,
		now:       time.Now,
	}
}

// Create adds a new sweet. Names are not unique.
func (s *SweetService) Create(ctx context.Context, in ports.SweetInput) (*domain.Sweet, error) {
	if err := validateSweetInput(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sweet := toSweet(in)
	sweet.CreatedAt = now
	sweet.UpdatedAt = now

	created, err := s.repo.Create(ctx, sweet)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create sweet")
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Str("sweet_id", created.ID).Str("name", created.Name).Msg("sweet created")
	return created, nil
}

func (s *SweetService) Get(ctx context.Context, id string) (*domain.Sweet, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns the whole catalog, newest first. The cache is best-effort:
// any cache failure falls through to the store.
func (s *SweetService) List(ctx context.Context) ([]*domain.Sweet, error) {
	if cached, ok, err := s.cache.Get(ctx); err != nil {
		s.log.Warn().Err(err).Msg("catalog cache read failed")
	} else if ok {
		metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()

	// The generation is read before the store so that a mutation landing
	// in between makes the write below a no-op.
	version, verr := s.cache.Version(ctx)
	if verr != nil {
		s.log.Warn().Err(verr).Msg("catalog cache version read failed")
	}

	sweets, err := s.repo.List(ctx, ports.SweetFilter{})
	if err != nil {
		return nil, err
	}

	if verr == nil {
		if err := s.cache.Set(ctx, version, sweets); err != nil {
			s.log.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return sweets, nil
}

// Search validates the price bounds and queries the store with a typed filter.
// A search without criteria is the full catalog and goes through List.
func (s *SweetService) Search(ctx context.Context, in ports.SearchInput) ([]*domain.Sweet, error) {
	filter, err := buildFilter(in)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return s.List(ctx)
	}
	return s.repo.List(ctx, filter)
}

// Update replaces every field of an existing sweet.
func (s *SweetService) Update(ctx context.Context, id string, in ports.SweetInput) (*domain.Sweet, error) {
	if err := validateSweetInput(in); err != nil {
		return nil, err
	}

	sweet := toSweet(in)
	sweet.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Replace(ctx, id, sweet)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Str("sweet_id", id).Msg("sweet updated")
	return updated, nil
}

func (s *SweetService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx)
	s.log.Info().Str("sweet_id", id).Msg("sweet deleted")
	return nil
}

// Purchase takes quantity units out of stock in one atomic store operation.
// The sweet is left untouched when stock is insufficient.
func (s *SweetService) Purchase(ctx context.Context, in ports.StockInput) (*domain.Sweet, error) {
	if in.Quantity <= 0 {
		return nil, domain.Validationf("quantity must be greater than 0")
	}

	sweet, err := s.repo.Decrement(ctx, in.SweetID, in.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.PurchasesRejectedTotal.Inc()
		}
		return nil, err
	}

	metrics.UnitsPurchasedTotal.Add(float64(in.Quantity))
	s.afterStockChange(ctx, domain.MovementPurchase, in, sweet)
	return sweet, nil
}

// Restock adds quantity units with no upper bound. Admin gating is the
// caller's responsibility.
func (s *SweetService) Restock(ctx context.Context, in ports.StockInput) (*domain.Sweet, error) {
	if in.Quantity < 0 {
		return nil, domain.Validationf("quantity must be at least 0")
	}

	sweet, err := s.repo.Increment(ctx, in.SweetID, in.Quantity)
	if err != nil {
		return nil, err
	}

	metrics.UnitsRestockedTotal.Add(float64(in.Quantity))
	s.afterStockChange(ctx, domain.MovementRestock, in, sweet)
	return sweet, nil
}

// afterStockChange records the movement and drops the cached catalog. Neither
// step can fail the already-applied mutation.
func (s *SweetService) afterStockChange(ctx context.Context, kind domain.MovementKind, in ports.StockInput, sweet *domain.Sweet) {
	s.invalidate(ctx)

	m := &domain.StockMovement{
		SweetID:       sweet.ID,
		Kind:          kind,
		Quantity:      in.Quantity,
		QuantityAfter: sweet.Quantity,
		CreatedAt:     s.now().UTC(),
	}
	if in.Actor != nil {
		m.ActorID = in.Actor.ID
		m.ActorRole = in.Actor.Role
	}
	if err := s.movements.Insert(ctx, m); err != nil {
		s.log.Warn().Err(err).Str("sweet_id", sweet.ID).Str("kind", string(kind)).Msg("failed to record stock movement")
	}

	s.log.Info().
		Str("sweet_id", sweet.ID).
		Str("kind", string(kind)).
		Int("quantity", in.Quantity).
		Int("quantity_after", sweet.Quantity).
		Msg("stock adjusted")
}

func (s *SweetService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func validateSweetInput(in ports.SweetInput) error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		problems = append(problems, "category is required")
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		problems = append(problems, "price must be a non-negative number")
	}
	if in.Quantity < 0 {
		problems = append(problems, "quantity must be at least 0")
	}
	if len(problems) > 0 {
		return domain.Validationf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func buildFilter(in ports.SearchInput) (ports.SweetFilter, error) {
	if !validBound(in.MinPrice) {
		return ports.SweetFilter{}, domain.Validationf("minPrice must be a non-negative number")
	}
	if !validBound(in.MaxPrice) {
		return ports.SweetFilter{}, domain.Validationf("maxPrice must be a non-negative number")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return ports.SweetFilter{}, domain.Validationf("minPrice must not exceed maxPrice")
	}

	return ports.SweetFilter{
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
	}, nil
}

func validBound(b *float64) bool {
	return b == nil || (*b >= 0 && !math.IsInf(*b, 0))
}

func toSweet(in ports.SweetInput) *domain.Sweet {
	return &domain.Sweet{
		Name:        in.Name,
		Category:    in.Category,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Description: in.Description,
		ImageURL:    in.ImageURL,
	}
}
