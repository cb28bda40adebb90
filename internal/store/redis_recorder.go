package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/adaptest/internal/model"
)

// RedisRecorder appends answer events as JSON to a per-user Redis list.
type RedisRecorder struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisRecorder creates a recorder writing to client.
func NewRedisRecorder(client *redis.Client) *RedisRecorder {
	return &RedisRecorder{client: client, prefix: "answers:"}
}

func (r *RedisRecorder) key(userID string) string {
	return r.prefix + userID
}

// RecordAnswer implements cat.Recorder.
func (r *RedisRecorder) RecordAnswer(ctx context.Context, ev model.AnswerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("answers: failed to marshal: %w", err)
	}
	return r.client.RPush(ctx, r.key(ev.UserID), data).Err()
}

// Close closes the underlying client.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
