// internal/historian/historian.go pops game action records off the Redis queue and persists them in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Queue is the part of the Redis client the historian reads from.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Store persists batches and marks stale games.
type Store interface {
	InsertActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options tune batching and the abandonment sweep.
type Options struct {
	QueueName  string
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration // how long a game may go without actions before it is abandoned
	PopTimeout time.Duration
}

// Service drains the action queue into the store.
type Service struct {
	queue Queue
	store Store
	opts  Options
	log   logrus.FieldLogger

	batchMu sync.Mutex
	batch   []cache.GameActionRecord
}

func New(queue Queue, store Store, opts Options, log logrus.FieldLogger) *Service {
	if opts.QueueName == "" {
		opts.QueueName = cache.DefaultQueueName
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	return &Service{
		queue: queue,
		store: store,
		opts:  opts,
		log:   log.WithField("queue", opts.QueueName),
		batch: make([]cache.GameActionRecord, 0, opts.BatchSize),
	}
}

// Run reads the queue until ctx is done, then flushes whatever is still batched.
func (hs *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hs.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		hs.inactivityLoop(ctx)
	}()

	hs.log.Info("Historian started.")
	hs.readLoop(ctx)
	wg.Wait()

	hs.flush(context.Background())
	hs.log.Info("Historian stopped.")
	return nil
}

// readLoop uses BLPop with a timeout so that context cancellation is noticed.
func (hs *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := hs.queue.BLPop(ctx, hs.opts.PopTimeout, hs.opts.QueueName).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				hs.log.WithError(err).Error("BLPop failed.")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if len(res) < 2 {
			continue
		}
		hs.handlePayload(ctx, res[1])
	}
}

func (hs *Service) handlePayload(ctx context.Context, payload string) {
	var record cache.GameActionRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		hs.log.WithError(err).Warn("Invalid action record.")
		return
	}
	if hs.append(record) {
		hs.flush(ctx)
	}
}

// append adds record to the batch and reports whether the batch is full.
func (hs *Service) append(record cache.GameActionRecord) bool {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.batch = append(hs.batch, record)
	return len(hs.batch) >= hs.opts.BatchSize
}

func (hs *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(hs.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.flush(ctx)
		}
	}
}

// flush writes the current batch in one transaction. A failed batch is put back for the next attempt.
func (hs *Service) flush(ctx context.Context) {
	hs.batchMu.Lock()
	if len(hs.batch) == 0 {
		hs.batchMu.Unlock()
		return
	}
	pending := make([]cache.GameActionRecord, len(hs.batch))
	copy(pending, hs.batch)
	hs.batch = hs.batch[:0]
	hs.batchMu.Unlock()

	if err := hs.store.InsertActions(ctx, pending); err != nil {
		hs.log.WithError(err).Errorf("Failed to flush %d action(s).", len(pending))
		hs.batchMu.Lock()
		hs.batch = append(pending, hs.batch...)
		hs.batchMu.Unlock()
		return
	}
	hs.log.Debugf("Flushed %d actions to DB.", len(pending))
}

// Pending is the number of records waiting for the next flush.
func (hs *Service) Pending() int {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	return len(hs.batch)
}

func (hs *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.sweep(ctx, time.Now())
		}
	}
}

// sweep marks games with no action since now-Inactivity as abandoned.
func (hs *Service) sweep(ctx context.Context, now time.Time) {
	n, err := hs.store.MarkAbandoned(ctx, now.Add(-hs.opts.Inactivity))
	if err != nil {
		hs.log.WithError(err).Error("Abandonment sweep failed.")
		return
	}
	if n > 0 {
		hs.log.Infof("Marked %d game(s) as abandoned due to inactivity.", n)
	}
}
