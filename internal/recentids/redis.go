package recentids

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a sorted set scored by insertion time, shared by
// every process pointing at the same key.
type Redis struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedis returns a Redis-backed cache stored under "<prefix>:recent_ids".
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{
		client: client,
		key:    fmt.Sprintf("%s:recent_ids", prefix),
		now:    time.Now,
	}
}

func (r *Redis) Contains(ctx context.Context, id string) (bool, error) {
	_, err := r.client.ZScore(ctx, r.key, id).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recent ids lookup: %w", err)
	}
	return true, nil
}

func (r *Redis) Add(ctx context.Context, capacity int, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	base := r.now().UnixNano()
	members := make([]redis.Z, len(ids))
	for i, id := range ids {
		members[i] = redis.Z{Score: float64(base + int64(i)), Member: id}
	}

	pipe := r.client.TxPipeline()
	// NX keeps the original insertion order for ids seen before.
	pipe.ZAddNX(ctx, r.key, members...)
	if capacity > 0 {
		pipe.ZRemRangeByRank(ctx, r.key, 0, int64(-capacity-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recent ids add: %w", err)
	}
	return nil
}
