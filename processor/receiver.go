package processor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flapjack/flapjack/event"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/store"
)

// Receiver pulls serialized events off the inbound queue and normalises
// them. Malformed payloads are counted and dropped; they never block the
// queue.
type Receiver struct {
	queue     store.Queue
	queueName string

	rejected int64
	accepted int64
}

// NewReceiver wraps an inbound queue
func NewReceiver(q store.Queue, queueName string) *Receiver {
	return &Receiver{queue: q, queueName: queueName}
}

// Receive blocks until a valid event is available, the wait times out
// (store.ErrQueueEmpty), or ctx is cancelled. Invalid payloads are consumed
// and skipped within the same wait.
func (r *Receiver) Receive(ctx context.Context, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, store.ErrQueueEmpty
		}
		payload, err := r.queue.BlockingPop(ctx, r.queueName, remaining)
		if err != nil {
			return nil, err
		}
		e, err := event.Parse(payload)
		if err != nil {
			atomic.AddInt64(&r.rejected, 1)
			log.Warnf(log.EventMgr, "Receiver: rejecting event: %v", err)
			continue
		}
		return e, nil
	}
}

// Ack marks an event fully consumed; the pop itself is destructive, so this
// only feeds the accepted counter
func (r *Receiver) Ack(*event.Event) {
	atomic.AddInt64(&r.accepted, 1)
}

// Rejected returns the count of payloads dropped as malformed
func (r *Receiver) Rejected() int64 {
	return atomic.LoadInt64(&r.rejected)
}

// Accepted returns the count of events acked after processing
func (r *Receiver) Accepted() int64 {
	return atomic.LoadInt64(&r.accepted)
}
