package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
	"github.com/sweetshop/sweet-shop-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// ErrRecorderStopped is returned by Insert after Stop has been called.
var ErrRecorderStopped = errors.New("movement recorder stopped")

// MovementRecorder persists stock movements off the request path. Movements
// are sharded on the sweet id, so the ledger entries of one sweet are written
// in the order they were recorded.
type MovementRecorder struct {
	workers []chan *domain.StockMovement
	store   ports.StockMovementRepository
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

var _ ports.StockMovementRepository = (*MovementRecorder)(nil)

// NewMovementRecorder creates a recorder with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewMovementRecorder(numWorkers int, store ports.StockMovementRepository, log zerolog.Logger) *MovementRecorder {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	r := &MovementRecorder{
		workers: make([]chan *domain.StockMovement, numWorkers),
		store:   store,
		log:     log,
	}
	for i := range r.workers {
		r.workers[i] = make(chan *domain.StockMovement, channelBuffer)
	}
	return r
}

// Start launches all worker goroutines. They run until Stop drains them.
func (r *MovementRecorder) Start() {
	for i, ch := range r.workers {
		r.wg.Add(1)
		go r.runWorker(i, ch)
	}
}

// Insert queues m for its sweet's worker. It blocks only while that worker's
// buffer is full, and gives up when ctx is done.
func (r *MovementRecorder) Insert(ctx context.Context, m *domain.StockMovement) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRecorderStopped
	}

	select {
	case r.workers[r.shardIndex(m.SweetID)] <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new movements and waits until every queued one is written or
// ctx expires.
func (r *MovementRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		for _, ch := range r.workers {
			close(ch)
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a sweet id deterministically to a worker index.
func (r *MovementRecorder) shardIndex(sweetID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sweetID))
	return int(h.Sum32() % uint32(len(r.workers)))
}

func (r *MovementRecorder) runWorker(id int, ch <-chan *domain.StockMovement) {
	defer r.wg.Done()
	for m := range ch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.store.Insert(ctx, m)
		cancel()
		if err != nil {
			r.log.Error().Err(err).
				Str("sweet_id", m.SweetID).
				Str("kind", string(m.Kind)).
				Int("worker_id", id).
				Msg("stock movement write failed")
		}
	}
}
