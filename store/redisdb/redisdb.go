// Package redisdb implements the flapjack store and queue contracts on top
// of a Redis server
package redisdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/store"
)

const (
	defaultLockTTL        = 30 * time.Second
	defaultLockRetryDelay = 25 * time.Millisecond
	defaultLockRetries    = 120

	defaultOpRetries    = 3
	defaultOpRetryDelay = 250 * time.Millisecond
)

// unlockScript releases a class lock only if the caller still holds it
const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// DB wraps a Redis client with the store and queue contracts
type DB struct {
	client redis.UniversalClient
}

// Config holds the Redis connection settings
type Config struct {
	Address  string `json:"address"`
	Password string `json:"password,omitempty"`
	Database int    `json:"database"`
}

// Connect opens a client and verifies the server is reachable
func Connect(ctx context.Context, cfg *Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("redisdb: nil config received")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "redisdb: cannot reach %s", cfg.Address)
	}
	return &DB{client: client}, nil
}

// NewWithClient wraps an existing client; used by tests against miniredis
func NewWithClient(client redis.UniversalClient) *DB {
	return &DB{client: client}
}

// Close releases the underlying client
func (d *DB) Close() error {
	return d.client.Close()
}

func recordKey(class, id string) string {
	return class + ":" + id
}

func indexKey(class, field string) string {
	return class + ":indices:" + field
}

// Get loads a record by class and id
func (d *DB) Get(ctx context.Context, class, id string, out store.Record) error {
	if out == nil {
		return store.ErrNilRecord
	}
	raw, err := d.client.Get(ctx, recordKey(class, id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("%w: %s %s", store.ErrNotFound, class, id)
		}
		return err
	}
	return json.Unmarshal(raw, out)
}

// Save serialises a record and refreshes its index entries
func (d *DB) Save(ctx context.Context, rec store.Record) error {
	if rec == nil {
		return store.ErrNilRecord
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return d.withRetry(ctx, "save "+rec.Class(), func() error {
		pipe := d.client.TxPipeline()
		pipe.Set(ctx, recordKey(rec.Class(), rec.Key()), raw, 0)
		for field, value := range rec.Indexes() {
			pipe.HSet(ctx, indexKey(rec.Class(), field), value, rec.Key())
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Delete removes a record and its index entries
func (d *DB) Delete(ctx context.Context, rec store.Record) error {
	if rec == nil {
		return store.ErrNilRecord
	}
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, recordKey(rec.Class(), rec.Key()))
	for field, value := range rec.Indexes() {
		pipe.HDel(ctx, indexKey(rec.Class(), field), value)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// FindByIndex resolves a unique secondary index to a record id
func (d *DB) FindByIndex(ctx context.Context, class, field, value string) (string, error) {
	id, err := d.client.HGet(ctx, indexKey(class, field), value).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("%w: %s by %s=%q", store.ErrNotFound, class, field, value)
		}
		return "", err
	}
	return id, nil
}

// AddToSet adds members to an unordered relation set
func (d *DB) AddToSet(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return d.client.SAdd(ctx, key, toAny(members)...).Err()
}

// RemoveFromSet removes members from a relation set
func (d *DB) RemoveFromSet(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return d.client.SRem(ctx, key, toAny(members)...).Err()
}

// SetMembers returns every member of a relation set
func (d *DB) SetMembers(ctx context.Context, key string) ([]string, error) {
	return d.client.SMembers(ctx, key).Result()
}

// SetIntersect returns the members common to every named set
func (d *DB) SetIntersect(ctx context.Context, keys ...string) ([]string, error) {
	return d.client.SInter(ctx, keys...).Result()
}

// ClearKey deletes a key outright
func (d *DB) ClearKey(ctx context.Context, key string) error {
	return d.client.Del(ctx, key).Err()
}

// SortedAdd inserts a member into a score-ordered set
func (d *DB) SortedAdd(ctx context.Context, key string, score float64, member string) error {
	return d.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// SortedRange returns members with scores in [lo, hi]
func (d *DB) SortedRange(ctx context.Context, key string, lo, hi float64) ([]string, error) {
	return d.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(lo),
		Max: formatScore(hi),
	}).Result()
}

// SortedRemove removes members from a score-ordered set
func (d *DB) SortedRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return d.client.ZRem(ctx, key, toAny(members)...).Err()
}

// SortedScore returns a member's score and whether it was present
func (d *DB) SortedScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := d.client.ZScore(ctx, key, member).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return score, true, nil
}

// Lock acquires the named class locks in sorted order, runs fn and releases
// in reverse. Lock keys expire so a crashed holder cannot wedge the system.
func (d *DB) Lock(ctx context.Context, classes []string, fn func(context.Context) error) error {
	sorted := make([]string, len(classes))
	copy(sorted, classes)
	sort.Strings(sorted)

	token, err := uuid.NewV4()
	if err != nil {
		return err
	}

	held := make([]string, 0, len(sorted))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := d.client.Eval(ctx, unlockScript, []string{held[i]}, token.String()).Err(); err != nil {
				log.Errorf(log.StoreMgr, "Store: failed to release lock %s: %v", held[i], err)
			}
		}
	}()

	for _, class := range sorted {
		key := "lock:" + class
		if err := d.acquire(ctx, key, token.String()); err != nil {
			return err
		}
		held = append(held, key)
	}
	return fn(ctx)
}

func (d *DB) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; attempt < defaultLockRetries; attempt++ {
		ok, err := d.client.SetNX(ctx, key, token, defaultLockTTL).Result()
		if err != nil {
			return errors.Wrapf(err, "redisdb: acquiring %s", key)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultLockRetryDelay):
		}
	}
	return fmt.Errorf("%w: %s", store.ErrLockUnavailable, key)
}

// withRetry retries transient failures a bounded number of times before
// surfacing the annotated error to the caller's supervisor
func (d *DB) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= defaultOpRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == defaultOpRetries {
			break
		}
		log.Warnf(log.StoreMgr, "Store: %s failed (attempt %d): %v", op, attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultOpRetryDelay * time.Duration(attempt)):
		}
	}
	return errors.Wrapf(err, "redisdb: %s exhausted retries", op)
}

func toAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}

func formatScore(f float64) string {
	return fmt.Sprintf("%f", f)
}
