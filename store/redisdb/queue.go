package redisdb

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flapjack/flapjack/store"
)

func queueKey(name string) string {
	return "queue:" + name
}

func deferredKey(name string) string {
	return "queue:" + name + ":deferred"
}

// Push appends a payload to the tail of a queue
func (d *DB) Push(ctx context.Context, queue string, payload []byte) error {
	return d.client.LPush(ctx, queueKey(queue), payload).Err()
}

// BlockingPop waits up to timeout for the oldest payload on a queue
func (d *DB) BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := d.client.BRPop(ctx, timeout, queueKey(queue)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, store.ErrQueueEmpty
		}
		return nil, err
	}
	// BRPOP returns the key name followed by the element
	if len(res) != 2 {
		return nil, store.ErrQueueEmpty
	}
	return []byte(res[1]), nil
}

// Length returns the number of payloads waiting on a queue
func (d *DB) Length(ctx context.Context, queue string) (int64, error) {
	return d.client.LLen(ctx, queueKey(queue)).Result()
}

// PushDelayed parks a payload until at
func (d *DB) PushDelayed(ctx context.Context, queue string, payload []byte, at time.Time) error {
	return d.client.ZAdd(ctx, deferredKey(queue), redis.Z{
		Score:  float64(at.Unix()),
		Member: payload,
	}).Err()
}

// PopDue removes and returns every parked payload whose release time has
// passed
func (d *DB) PopDue(ctx context.Context, queue string, now time.Time) ([][]byte, error) {
	key := deferredKey(queue)
	members, err := d.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	if err := d.client.ZRem(ctx, key, toAny(members)...).Err(); err != nil {
		return nil, err
	}
	out := make([][]byte, len(members))
	for i := range members {
		out[i] = []byte(members[i])
	}
	return out, nil
}
