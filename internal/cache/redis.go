// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for game action logs.
var DefaultQueueName = "uno_actions"

// GameActionRecord holds the minimal info needed by the historian.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"game_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Connect opens a Redis client for addr and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// PublishGameAction serializes the given record to JSON, then pushes it to the Redis queue.
func PublishGameAction(ctx context.Context, rdb redis.Cmdable, queueName string, record GameActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}

	if err := rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// Publisher buffers action records so the game never waits on Redis while holding its lock.
type Publisher struct {
	rdb       redis.Cmdable
	queueName string
	records   chan GameActionRecord
	log       logrus.FieldLogger
}

// NewPublisher creates a publisher with room for buffer pending records.
func NewPublisher(rdb redis.Cmdable, queueName string, buffer int, log logrus.FieldLogger) *Publisher {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		records:   make(chan GameActionRecord, buffer),
		log:       log.WithField("queue", queueName),
	}
}

// Enqueue hands a record to the publisher without blocking. Records are dropped when the buffer is full.
func (p *Publisher) Enqueue(record GameActionRecord) {
	select {
	case p.records <- record:
	default:
		p.log.WithField("action_index", record.ActionIndex).Warn("action log buffer full, dropping record")
	}
}

// Run pushes buffered records to Redis until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-p.records:
			p.publish(rec)
		case <-ctx.Done():
			p.drain()
			return nil
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case rec := <-p.records:
			p.publish(rec)
		default:
			return
		}
	}
}

func (p *Publisher) publish(rec GameActionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := PublishGameAction(ctx, p.rdb, p.queueName, rec); err != nil {
		p.log.WithError(err).Errorf("publishing game action %d", rec.ActionIndex)
	}
}
