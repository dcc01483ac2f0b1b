package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

func TestPool_RunsTasks(t *testing.T) {
	pool := NewPool(3, 10, nil, observability.NewMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	var (
		wg    sync.WaitGroup
		count atomic.Int32
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, pool.Enqueue(Task{Name: "count", Run: func(context.Context) error {
			defer wg.Done()
			count.Add(1)
			return nil
		}}))
	}
	wg.Add(2)
	require.NoError(t, pool.Enqueue(Task{Name: "fails", Run: func(context.Context) error {
		defer wg.Done()
		return errors.New("boom")
	}}))
	require.NoError(t, pool.Enqueue(Task{Name: "panics", Run: func(context.Context) error {
		defer wg.Done()
		panic("unexpected")
	}}))
	wg.Wait()
	assert.EqualValues(t, 5, count.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
	assert.ErrorIs(t, pool.Enqueue(Task{Name: "late", Run: func(context.Context) error { return nil }}), ErrPoolStopped)
}

func TestPool_QueueFull(t *testing.T) {
	pool := NewPool(1, 1, nil, nil)
	noop := Task{Name: "noop", Run: func(context.Context) error { return nil }}
	require.NoError(t, pool.Enqueue(noop))
	assert.ErrorIs(t, pool.Enqueue(noop), ErrQueueFull)
}

func TestPool_InFlightTaskCompletesAfterCancel(t *testing.T) {
	pool := NewPool(1, 1, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, pool.Enqueue(Task{Name: "slow", Run: func(taskCtx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(taskCtx.Err() == nil)
		return nil
	}}))

	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()
	<-started
	cancel()
	<-done
	assert.True(t, finished.Load())
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released int
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held[key] {
		return nil, false, nil
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.released++
	}, true, nil
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler(nil)
	run := func(context.Context) error { return nil }
	assert.Error(t, s.Register(Job{Name: "", Spec: "@hourly", Run: run}))
	assert.Error(t, s.Register(Job{Name: "bad", Spec: "not a spec", Run: run}))
	require.NoError(t, s.Register(Job{Name: "ok", Spec: "@every 1m", Run: run}))
	assert.Error(t, s.Register(Job{Name: "ok", Spec: "@hourly", Run: run}))
}

func TestScheduler_TriggerHonoursLock(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}}
	s := NewScheduler(nil, WithLocker(locker, time.Minute), WithMetrics(observability.NewMetrics()))
	runs := 0
	require.NoError(t, s.Register(Job{Name: "sla.evaluate", Spec: "@every 1m", Run: func(context.Context) error {
		runs++
		return nil
	}}))

	assert.True(t, s.Trigger(context.Background(), "sla.evaluate"))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, locker.released)

	locker.held["jobs:lock:sla.evaluate"] = true
	assert.False(t, s.Trigger(context.Background(), "sla.evaluate"))
	assert.Equal(t, 1, runs)

	locker.err = errors.New("redis down")
	assert.False(t, s.Trigger(context.Background(), "sla.evaluate"))
	assert.False(t, s.Trigger(context.Background(), "unknown"))
}

func TestScheduler_TriggerRecoversPanics(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(Job{Name: "explode", Spec: "@hourly", Run: func(context.Context) error {
		panic("boom")
	}}))
	assert.True(t, s.Trigger(context.Background(), "explode"))
}

func TestScheduler_RunStops(t *testing.T) {
	s := NewScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
	delivered chan events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	r.published = append(r.published, event)
	r.mu.Unlock()
	if r.delivered != nil {
		r.delivered <- event
	}
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func TestAsyncDispatcher_DeliversOnPool(t *testing.T) {
	inner := &recordingDispatcher{delivered: make(chan events.Event, 1)}
	pool := NewPool(1, 4, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Run(ctx) }()

	d := NewAsyncDispatcher(inner, pool, nil)
	require.NoError(t, d.Publish(context.Background(), events.Event{ID: "e1", Type: events.EventTicketAssigned}))

	select {
	case ev := <-inner.delivered:
		assert.Equal(t, "e1", ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestAsyncDispatcher_FallsBackWhenQueueFull(t *testing.T) {
	inner := &recordingDispatcher{}
	pool := NewPool(1, 1, nil, nil)
	require.NoError(t, pool.Enqueue(Task{Name: "filler", Run: func(context.Context) error { return nil }}))

	d := NewAsyncDispatcher(inner, pool, nil)
	require.NoError(t, d.Publish(context.Background(), events.Event{ID: "e2", Type: events.EventSLABreached}))

	inner.mu.Lock()
	defer inner.mu.Unlock()
	require.Len(t, inner.published, 1)
	assert.Equal(t, "e2", inner.published[0].ID)
}
