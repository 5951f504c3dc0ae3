// Package store defines the abstract persistence surface consumed by the
// flapjack pipeline. The reference implementation lives in store/redisdb.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record or index entry does not exist
	ErrNotFound = errors.New("record not found")
	// ErrQueueEmpty is returned by a blocking pop that timed out with no
	// payload available
	ErrQueueEmpty = errors.New("queue empty")
	// ErrLockUnavailable is returned when a class lock could not be
	// acquired within the retry budget
	ErrLockUnavailable = errors.New("lock unavailable")
	// ErrNilRecord is returned when a nil record is passed to a store
	// operation
	ErrNilRecord = errors.New("nil record received")
)

// Record is any entity the store can persist. Relations between records are
// expressed as index sets keyed by the owning record's id, never embedded.
type Record interface {
	Class() string
	Key() string
	// Indexes lists unique secondary lookup fields and their current
	// values, e.g. a check's name
	Indexes() map[string]string
}

// Store is the entity persistence contract. All mutations touching a check
// and its associated routes, maintenances and states happen under one Lock
// call spanning the named classes.
type Store interface {
	Get(ctx context.Context, class, id string, out Record) error
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, rec Record) error
	FindByIndex(ctx context.Context, class, field, value string) (string, error)

	AddToSet(ctx context.Context, key string, members ...string) error
	RemoveFromSet(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetIntersect(ctx context.Context, keys ...string) ([]string, error)
	ClearKey(ctx context.Context, key string) error

	SortedAdd(ctx context.Context, key string, score float64, member string) error
	SortedRange(ctx context.Context, key string, lo, hi float64) ([]string, error)
	SortedRemove(ctx context.Context, key string, members ...string) error
	SortedScore(ctx context.Context, key, member string) (float64, bool, error)

	// Lock acquires every named class lock, runs fn, then releases. Class
	// locks are acquired in a stable order so concurrent callers cannot
	// deadlock.
	Lock(ctx context.Context, classes []string, fn func(context.Context) error) error
}

// Queue is the durable FIFO contract used for the inbound event queue and
// the per-medium outbound alert queues
type Queue interface {
	Push(ctx context.Context, queue string, payload []byte) error
	// BlockingPop waits up to timeout for a payload; ErrQueueEmpty is
	// returned when the wait expires
	BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	Length(ctx context.Context, queue string) (int64, error)

	// PushDelayed parks a payload until at, at which point PopDue will
	// surface it; used for alert retry backoff
	PushDelayed(ctx context.Context, queue string, payload []byte, at time.Time) error
	PopDue(ctx context.Context, queue string, now time.Time) ([][]byte, error)
}
