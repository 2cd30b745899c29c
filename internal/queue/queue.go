package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sender persists one record's accumulated partial update.
type Sender interface {
	Send(ctx context.Context, id string, payload map[string]interface{}) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, id string, payload map[string]interface{}) error

func (f SenderFunc) Send(ctx context.Context, id string, payload map[string]interface{}) error {
	return f(ctx, id, payload)
}

type entry struct {
	payload map[string]interface{}
	timer   Timer
}

// Queue buffers partial updates per record id. Rapid edits to the same id are
// merged into one pending payload and written once the debounce window
// elapses, or immediately on Flush. At most one pending entry exists per id.
type Queue struct {
	mu      sync.Mutex
	delay   time.Duration
	clock   Clock
	sender  Sender
	pending map[string]*entry

	// OnError is called with the record id when an asynchronous (timer-fired)
	// send fails. Flush reports its errors to the caller directly.
	OnError func(id string, err error)
}

// New builds a queue with the given debounce delay. A nil clock means real time.
func New(delay time.Duration, clock Clock, sender Sender) *Queue {
	if clock == nil {
		clock = RealClock{}
	}
	return &Queue{
		delay:   delay,
		clock:   clock,
		sender:  sender,
		pending: make(map[string]*entry),
	}
}

// Enqueue merges partial into the pending payload for id and restarts its
// timer. Nested maps (the investment parameter map) merge key-by-key; a key
// absent from the new partial keeps its previously enqueued value.
func (q *Queue) Enqueue(id string, partial map[string]interface{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.pending[id]
	if !ok {
		e = &entry{payload: map[string]interface{}{}}
		q.pending[id] = e
	} else if e.timer != nil {
		e.timer.Stop()
	}
	Merge(e.payload, partial)
	e.timer = q.clock.AfterFunc(q.delay, func() { q.fire(id) })
}

// fire sends the accumulated payload for one id when its timer elapses.
// Other ids' timers are unaffected.
func (q *Queue) fire(id string) {
	q.mu.Lock()
	e, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	delete(q.pending, id)
	q.mu.Unlock()

	if err := q.sender.Send(context.Background(), id, e.payload); err != nil && q.OnError != nil {
		q.OnError(id, err)
	}
}

// Flush cancels all pending timers and sends every accumulated payload
// immediately, in parallel, waiting for all to finish. A second Flush with
// nothing pending sends no requests.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	batch := q.pending
	q.pending = make(map[string]*entry)
	q.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 0, len(batch))
	var errMu sync.Mutex
	for id, e := range batch {
		if e.timer != nil {
			e.timer.Stop()
		}
		wg.Add(1)
		go func(id string, payload map[string]interface{}) {
			defer wg.Done()
			if err := q.sender.Send(ctx, id, payload); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(id, e.payload)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Discard drops any pending payload for id without sending it. Used when
// the record itself is deleted.
func (q *Queue) Discard(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.pending[id]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(q.pending, id)
	}
}

// Clear drops every pending payload without sending.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.pending {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	q.pending = make(map[string]*entry)
}

// Pending reports how many record ids have an unsent payload.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Merge applies src onto dst field by field. When both sides hold a map for
// the same key the maps merge key-by-key instead of src replacing dst.
func Merge(dst, src map[string]interface{}) {
	for k, v := range src {
		if sub, ok := v.(map[string]interface{}); ok {
			if cur, ok := dst[k].(map[string]interface{}); ok {
				Merge(cur, sub)
				continue
			}
			cp := make(map[string]interface{}, len(sub))
			Merge(cp, sub)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}
