package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out timers that only fire when the test advances time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	due     time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return !t.fired
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{due: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.due <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// recordingSender captures every Send call.
type recordingSender struct {
	mu    sync.Mutex
	calls []sendCall
	fail  map[string]error
}

type sendCall struct {
	id      string
	payload map[string]interface{}
}

func (s *recordingSender) Send(_ context.Context, id string, payload map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sendCall{id: id, payload: payload})
	if s.fail != nil {
		if err, ok := s.fail[id]; ok {
			return err
		}
	}
	return nil
}

func (s *recordingSender) Calls() []sendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sendCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func setupQueue() (*Queue, *fakeClock, *recordingSender) {
	clock := &fakeClock{}
	sender := &recordingSender{}
	q := New(500*time.Millisecond, clock, sender)
	return q, clock, sender
}

func TestEnqueue_CoalescesRapidEdits(t *testing.T) {
	q, clock, sender := setupQueue()

	q.Enqueue("7", map[string]interface{}{"cost": 100})
	clock.Advance(200 * time.Millisecond)
	q.Enqueue("7", map[string]interface{}{"cost": 150, "name": "X"})
	clock.Advance(499 * time.Millisecond)
	assert.Empty(t, sender.Calls(), "debounce window not elapsed yet")

	clock.Advance(1 * time.Millisecond)
	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "7", calls[0].id)
	assert.Equal(t, map[string]interface{}{"cost": 150, "name": "X"}, calls[0].payload)
}

func TestEnqueue_NestedParametersMergeKeyByKey(t *testing.T) {
	q, clock, sender := setupQueue()

	q.Enqueue("1", map[string]interface{}{
		"parameters": map[string]interface{}{"capacity_kwh": 10.0, "brand": "sonnen"},
	})
	q.Enqueue("1", map[string]interface{}{
		"parameters": map[string]interface{}{"capacity_kwh": 12.5},
	})
	clock.Advance(500 * time.Millisecond)

	calls := sender.Calls()
	require.Len(t, calls, 1)
	params := calls[0].payload["parameters"].(map[string]interface{})
	assert.Equal(t, 12.5, params["capacity_kwh"])
	assert.Equal(t, "sonnen", params["brand"], "key absent from second edit keeps first value")
}

func TestEnqueue_IsolatedPerRecordID(t *testing.T) {
	q, clock, sender := setupQueue()

	q.Enqueue("a", map[string]interface{}{"cost": 1})
	clock.Advance(300 * time.Millisecond)
	q.Enqueue("b", map[string]interface{}{"cost": 2})
	// a's timer is unaffected by b's enqueue
	clock.Advance(200 * time.Millisecond)

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].id)

	clock.Advance(300 * time.Millisecond)
	require.Len(t, sender.Calls(), 2)
}

func TestFlush_SendsPendingAndIsIdempotent(t *testing.T) {
	q, _, sender := setupQueue()

	q.Enqueue("a", map[string]interface{}{"cost": 1})
	q.Enqueue("b", map[string]interface{}{"cost": 2})
	require.NoError(t, q.Flush(context.Background()))
	assert.Len(t, sender.Calls(), 2)
	assert.Equal(t, 0, q.Pending())

	// Second flush has nothing left to send.
	require.NoError(t, q.Flush(context.Background()))
	assert.Len(t, sender.Calls(), 2)
}

func TestFlush_TimerDoesNotRefireAfterFlush(t *testing.T) {
	q, clock, sender := setupQueue()

	q.Enqueue("a", map[string]interface{}{"cost": 1})
	require.NoError(t, q.Flush(context.Background()))
	clock.Advance(time.Second)
	assert.Len(t, sender.Calls(), 1)
}

func TestFlush_ReportsSendErrors(t *testing.T) {
	q, _, sender := setupQueue()
	sender.fail = map[string]error{"bad": errors.New("rejected")}

	q.Enqueue("good", map[string]interface{}{"cost": 1})
	q.Enqueue("bad", map[string]interface{}{"cost": 2})
	err := q.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	// The failing record does not block the other send.
	assert.Len(t, sender.Calls(), 2)
}

func TestFire_ErrorSurfacesThroughOnError(t *testing.T) {
	q, clock, sender := setupQueue()
	sender.fail = map[string]error{"x": errors.New("backend down")}

	var gotID string
	var gotErr error
	q.OnError = func(id string, err error) { gotID, gotErr = id, err }

	q.Enqueue("x", map[string]interface{}{"cost": 9})
	clock.Advance(500 * time.Millisecond)

	assert.Equal(t, "x", gotID)
	require.Error(t, gotErr)
	assert.Equal(t, 0, q.Pending(), "failed payload is not silently retried")
}

func TestMerge_ScalarOverwriteAndNewNestedCopy(t *testing.T) {
	dst := map[string]interface{}{"cost": 1}
	src := map[string]interface{}{"cost": 2, "parameters": map[string]interface{}{"a": 1}}
	Merge(dst, src)
	assert.Equal(t, 2, dst["cost"])

	// Mutating the source map afterwards must not leak into the payload.
	src["parameters"].(map[string]interface{})["a"] = 99
	assert.Equal(t, 1, dst["parameters"].(map[string]interface{})["a"])
}
