// Package cache keeps serialized avatar snapshots keyed by bare JID, saving
// round trips to the avatar stores. It is read-through only: a miss (or a
// snapshot that no longer parses) sends the caller back to the stores.
package cache

import "context"

// Cache stores opaque snapshot bytes per bare user id. Implementations must
// be safe for concurrent use. Failures on Put/Remove are swallowed by the
// implementation (logged, not returned): the cache is an optimization and
// must never fail an event.
type Cache interface {
	// Get returns the stored snapshot, or ok=false on a miss.
	Get(ctx context.Context, bareJID string) (snapshot []byte, ok bool)
	Put(ctx context.Context, bareJID string, snapshot []byte)
	Remove(ctx context.Context, bareJID string)
}
