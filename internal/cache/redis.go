package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"carma-vehicle-api/internal/model"
)

// Redis backs the cohort cache with a shared store so replicas warm each
// other. Rows travel as a JSON blob; unmarshalling yields fresh copies, which
// gives the deep-copy guarantee for free. Backend errors degrade to misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (r *Redis) Get(ctx context.Context, key Key) ([]*model.Listing, bool) {
	raw, err := r.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cohort cache read failed", "key", key.String(), "error", err)
		}
		return nil, false
	}
	var rows []*model.Listing
	if err := json.Unmarshal(raw, &rows); err != nil {
		slog.Warn("cohort cache entry corrupt", "key", key.String(), "error", err)
		return nil, false
	}
	return rows, true
}

func (r *Redis) Set(ctx context.Context, key Key, rows []*model.Listing) {
	raw, err := json.Marshal(rows)
	if err != nil {
		slog.Warn("cohort cache encode failed", "key", key.String(), "error", err)
		return
	}
	if err := r.client.Set(ctx, key.String(), raw, r.ttl).Err(); err != nil {
		slog.Warn("cohort cache write failed", "key", key.String(), "error", err)
	}
}

// Ping verifies connectivity at boot.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
