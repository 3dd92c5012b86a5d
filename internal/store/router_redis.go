package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

// RedisRouter hands stanzas to the XMPP server through an outbound redis
// stream. Delivery is best effort: an XAdd failure is logged and dropped,
// never surfaced to the event that triggered it. Every routed stanza is
// tagged with the bridge origin so it cannot re-enter the conversion path.
type RedisRouter struct {
	client *redis.Client
	stream string
	origin string
	log    zerolog.Logger
}

func NewRedisRouter(client *redis.Client, stream, origin string, log zerolog.Logger) *RedisRouter {
	return &RedisRouter{client: client, stream: stream, origin: origin, log: log}
}

func (r *RedisRouter) Route(ctx context.Context, stanza *xmpp.Stanza) error {
	_, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"stanza": stanza.Root.XML(),
			"origin": r.origin,
		},
	}).Result()
	if err != nil {
		r.log.Error().Err(err).Str("kind", stanza.Kind).Msg("outbound stanza dropped")
		return fmt.Errorf("route stanza: %w", err)
	}
	return nil
}
