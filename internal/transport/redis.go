package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// RedisDispatcher pushes JSON transition envelopes onto named Redis lists.
type RedisDispatcher struct {
	log *logger.Logger
	rdb *redis.Client
}

func NewRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     envutil.String("REDIS_ADDR", "localhost:6379"),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	})
}

func NewRedisDispatcher(log *logger.Logger, rdb *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{
		log: log.With("component", "RedisDispatcher"),
		rdb: rdb,
	}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, req TransitionRequest, queue string) error {
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}
	if req.Attempt == 0 {
		req.Attempt = 1
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal transition request: %w", err)
	}
	if err := d.rdb.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", queue, err)
	}
	d.log.Debug("dispatched transition",
		"queue", queue,
		"workflow", req.Workflow,
		"subject_id", req.SubjectID,
		"transition", req.Transition,
		"attempt", req.Attempt,
	)
	return nil
}
