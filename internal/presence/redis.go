package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:"

// RedisStore keeps one hash per board: field = user id, value = JSON entry.
// The hash expires BoardTTL after the last write.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Put(ctx context.Context, boardID string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	key := presenceKey(boardID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, entry.UserID, data)
	pipe.Expire(ctx, key, BoardTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, boardID string) (map[string]Entry, error) {
	raw, err := s.client.HGetAll(ctx, presenceKey(boardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	entries := make(map[string]Entry, len(raw))
	for userID, data := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			slog.Warn("skipping malformed presence entry", "board_id", boardID, "user_id", userID, "error", err)
			continue
		}
		entries[userID] = e
	}
	return normalize(entries, s.now()), nil
}

func presenceKey(boardID string) string {
	return presenceKeyPrefix + boardID
}
