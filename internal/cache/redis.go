package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const snapshotKeyPrefix = "avatar:snapshot:"

// Redis stores snapshots in a shared redis instance so several bridge
// processes can serve the same user base. TTL is enforced by redis; the byte
// cap is left to the redis maxmemory policy.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log zerolog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, log: log}
}

// NewRedisClient connects and pings, failing fast on a bad address.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *Redis) Get(ctx context.Context, bareJID string) ([]byte, bool) {
	value, err := r.client.Get(ctx, snapshotKeyPrefix+bareJID).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		r.log.Warn().Err(err).Str("user", bareJID).Msg("snapshot cache read failed")
		return nil, false
	}
	return value, true
}

func (r *Redis) Put(ctx context.Context, bareJID string, snapshot []byte) {
	if err := r.client.Set(ctx, snapshotKeyPrefix+bareJID, snapshot, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("user", bareJID).Msg("snapshot cache write failed")
	}
}

func (r *Redis) Remove(ctx context.Context, bareJID string) {
	if err := r.client.Del(ctx, snapshotKeyPrefix+bareJID).Err(); err != nil {
		r.log.Warn().Err(err).Str("user", bareJID).Msg("snapshot cache delete failed")
	}
}
