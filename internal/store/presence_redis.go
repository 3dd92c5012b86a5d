package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mightymop/avatarbridge/internal/xmpp"
)

const presenceKeyPrefix = "presence:last:"

// RedisPresence reads the last available presence per bare JID, maintained
// in redis by whatever feeds the inbound stanza stream.
type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func (d *RedisPresence) CurrentPresence(ctx context.Context, user xmpp.JID) (*xmpp.Stanza, error) {
	raw, err := d.client.Get(ctx, presenceKeyPrefix+user.Bare()).Bytes()
	if err == redis.Nil {
		return nil, ErrNoPresence
	}
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}
	stanza, err := xmpp.ParseStanza(raw)
	if err != nil {
		return nil, fmt.Errorf("parse stored presence: %w", err)
	}
	return stanza, nil
}

// RecordPresence stores the latest available presence; unavailable presence
// clears the record.
func (d *RedisPresence) RecordPresence(ctx context.Context, stanza *xmpp.Stanza) error {
	key := presenceKeyPrefix + stanza.From.Bare()
	if stanza.Type == "unavailable" {
		return d.client.Del(ctx, key).Err()
	}
	return d.client.Set(ctx, key, []byte(stanza.Root.XML()), 0).Err()
}
