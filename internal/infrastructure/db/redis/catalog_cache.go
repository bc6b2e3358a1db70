package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
)

const (
	catalogKey      = "sweets:catalog"
	versionKey      = "sweets:catalog:version"
	defaultCacheTTL = 5 * time.Minute
)

// CatalogCache stores the full, unfiltered catalog listing as one JSON value.
// Any mutation of the catalog must call Invalidate, which also advances the
// catalog generation so that a listing read before the mutation is never
// written back.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCatalogCache creates a CatalogCache wrapping the given Redis client.
func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CatalogCache{client: client, ttl: ttl}
}

// Get returns the cached catalog. ok is false on a cache miss.
func (c *CatalogCache) Get(ctx context.Context) ([]*domain.Sweet, bool, error) {
	raw, err := c.client.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("catalog cache get: %w", err)
	}

	sweets, err := decodeCatalog(raw)
	if err != nil {
		return nil, false, err
	}
	return sweets, true, nil
}

// Version returns the current catalog generation. A missing key is 0.
func (c *CatalogCache) Version(ctx context.Context) (int64, error) {
	v, err := readVersion(ctx, c.client)
	if err != nil {
		return 0, fmt.Errorf("catalog cache version: %w", err)
	}
	return v, nil
}

// Set stores sweets (expires after ttl) only while the catalog generation is
// still version. The version key is watched, so an Invalidate racing with
// the write aborts it. A dropped write is not an error.
func (c *CatalogCache) Set(ctx context.Context, version int64, sweets []*domain.Sweet) error {
	raw, err := encodeCatalog(sweets)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx)
		if err != nil {
			return err
		}
		if current != version {
			return errStaleCatalog
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, catalogKey, raw, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil, errors.Is(err, errStaleCatalog), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("catalog cache set: %w", err)
	}
}

// Invalidate advances the catalog generation and drops the cached catalog.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Del(ctx, catalogKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("catalog cache invalidate: %w", err)
	}
	return nil
}

var errStaleCatalog = errors.New("catalog changed since it was read")

func readVersion(ctx context.Context, cmd redis.Cmdable) (int64, error) {
	v, err := cmd.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func encodeCatalog(sweets []*domain.Sweet) ([]byte, error) {
	if sweets == nil {
		sweets = []*domain.Sweet{}
	}
	raw, err := json.Marshal(sweets)
	if err != nil {
		return nil, fmt.Errorf("catalog cache encode: %w", err)
	}
	return raw, nil
}

func decodeCatalog(raw []byte) ([]*domain.Sweet, error) {
	var sweets []*domain.Sweet
	if err := json.Unmarshal(raw, &sweets); err != nil {
		return nil, fmt.Errorf("catalog cache decode: %w", err)
	}
	return sweets, nil
}
