package node

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ryandielhenn/izzy/internal/telemetry"
	"github.com/ryandielhenn/izzy/pkg/heartbeat"
)

// inbound is a structurally valid frame waiting for protocol processing.
type inbound struct {
	msg  heartbeat.Message
	from net.Addr
	at   time.Time
}

// queue is the unbounded FIFO between the receiver and the processor.
// push never blocks; pop blocks until an item is available or ctx is done.
// The depth gauge is updated under the lock so it always matches len.
type queue struct {
	mu    sync.Mutex
	items []inbound
	ready chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

func (q *queue) push(it inbound) {
	q.mu.Lock()
	q.items = append(q.items, it)
	telemetry.QueueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *queue) pop(ctx context.Context) (inbound, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items[0] = inbound{}
			q.items = q.items[1:]
			telemetry.QueueDepth.Set(float64(len(q.items)))
			q.mu.Unlock()
			return it, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return inbound{}, false
		case <-q.ready:
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
