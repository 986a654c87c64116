package consumer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Inbox deduplicates consumed events. This service has no database of
// its own, so the dedupe set lives in Redis: SET NX with a TTL long
// enough to outlast Kafka redelivery.
type Inbox struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewInbox(rdb *redis.Client, ttl time.Duration) *Inbox {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Inbox{rdb: rdb, ttl: ttl}
}

// Record claims the event id. It returns true on first sight, false on
// a duplicate.
func (i *Inbox) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	if eventID == "" {
		// No id to dedupe on; process rather than silently drop.
		return true, nil
	}
	return i.rdb.SetNX(ctx, "agenda:inbox:"+eventType+":"+eventID, 1, i.ttl).Result()
}
