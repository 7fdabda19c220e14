package intake

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// historyReader is the slice of the chat store the cache falls back to.
type historyReader interface {
	Recent(ctx context.Context, patientID string, limit int) ([]chat.Message, error)
}

// HistoryCache keeps each patient's recent messages in Redis so every chat
// turn does not re-read the message table. Redis being down only costs the
// cache; reads fall through to the store.
type HistoryCache struct {
	rdb        *redis.Client
	store      historyReader
	ttl        time.Duration
	maxEntries int
	logger     *logging.Logger
}

// NewHistoryCache wires the cache. rdb may be nil; all reads then go to the
// store directly.
func NewHistoryCache(rdb *redis.Client, store historyReader, ttl time.Duration, maxEntries int, logger *logging.Logger) *HistoryCache {
	if store == nil {
		panic("intake: history store required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 20
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HistoryCache{rdb: rdb, store: store, ttl: ttl, maxEntries: maxEntries, logger: logger}
}

func historyKey(patientID string) string {
	return "intake:history:" + patientID
}

// Recent returns the patient's most recent messages in chronological order.
func (c *HistoryCache) Recent(ctx context.Context, patientID string, limit int) ([]chat.Message, error) {
	if limit <= 0 || limit > c.maxEntries {
		limit = c.maxEntries
	}
	if c.rdb != nil {
		raw, err := c.rdb.LRange(ctx, historyKey(patientID), int64(-limit), -1).Result()
		if err != nil && err != redis.Nil {
			c.logger.Warn("history cache read failed", "patient_id", patientID, "error", err)
		} else if len(raw) > 0 {
			messages := make([]chat.Message, 0, len(raw))
			for _, item := range raw {
				var msg chat.Message
				if err := json.Unmarshal([]byte(item), &msg); err != nil {
					messages = nil
					break
				}
				messages = append(messages, msg)
			}
			if messages != nil {
				return messages, nil
			}
			// Unreadable payloads mean the key is stale; rebuild below.
			if err := c.rdb.Del(ctx, historyKey(patientID)).Err(); err != nil {
				c.logger.Warn("history cache purge failed", "patient_id", patientID, "error", err)
			}
		}
	}

	messages, err := c.store.Recent(ctx, patientID, limit)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, patientID, messages)
	return messages, nil
}

// Append pushes a freshly stored message onto the cached tail. Best effort.
func (c *HistoryCache) Append(ctx context.Context, patientID string, msg chat.Message) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	key := historyKey(patientID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-c.maxEntries), -1)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("history cache append failed", "patient_id", patientID, "error", err)
	}
}

// Invalidate drops a patient's cached history, used when messages are
// written outside the chat turn path.
func (c *HistoryCache) Invalidate(ctx context.Context, patientID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, historyKey(patientID)).Err(); err != nil {
		c.logger.Warn("history cache invalidate failed", "patient_id", patientID, "error", err)
	}
}

func (c *HistoryCache) fill(ctx context.Context, patientID string, messages []chat.Message) {
	if c.rdb == nil || len(messages) == 0 {
		return
	}
	key := historyKey(patientID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("history cache fill failed", "patient_id", patientID, "error", err)
	}
}
