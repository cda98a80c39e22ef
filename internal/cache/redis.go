// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. It stays nil when Redis is unavailable, in which
// case game actions are simply not recorded.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for game action logs.
const DefaultQueueName = "kaboom_actions"

// QueueName is the list actions are pushed to; set from configuration at startup.
var QueueName = DefaultQueueName

// GameActionRecord holds the minimal info needed by the historian.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"game_id"`
	Round         int                    `json:"round"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// NewClient builds a client for addr/db and verifies it with a ping.
func NewClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ConnectRedis initializes the global client used by PublishGameAction.
func ConnectRedis(ctx context.Context, addr string, db int) error {
	rdb, err := NewClient(ctx, addr, db)
	if err != nil {
		return err
	}
	Rdb = rdb
	return nil
}

// PublishGameAction serializes the record to JSON and pushes it onto the queue.
func PublishGameAction(ctx context.Context, record GameActionRecord) error {
	if Rdb == nil {
		return fmt.Errorf("redis is not connected")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	if err := Rdb.RPush(ctx, QueueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", QueueName, err)
	}
	return nil
}

// DecodeGameAction parses a queued record.
func DecodeGameAction(data []byte) (GameActionRecord, error) {
	var rec GameActionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("invalid action record: %w", err)
	}
	return rec, nil
}
