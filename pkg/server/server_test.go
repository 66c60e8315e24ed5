package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponent blocks in Serve until ctx is cancelled or fail is closed.
type fakeComponent struct {
	name    string
	failErr error
	fail    chan struct{}
	started chan struct{}
	stops   atomic.Int32

	mu    sync.Mutex
	order *[]string
}

func newFake(name string, order *[]string) *fakeComponent {
	return &fakeComponent{name: name, fail: make(chan struct{}), started: make(chan struct{}), order: order}
}

func (f *fakeComponent) Serve(ctx context.Context) error {
	close(f.started)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.fail:
		return f.failErr
	}
}

func (f *fakeComponent) Stop(context.Context) error {
	f.stops.Add(1)
	if f.order != nil {
		f.mu.Lock()
		*f.order = append(*f.order, f.name)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeComponent) Name() string { return f.name }

func TestAdd(t *testing.T) {
	s := New(0)

	require.NoError(t, s.Add(newFake("http", nil)))
	assert.Error(t, s.Add(newFake("http", nil)), "duplicate name")
	assert.Error(t, s.Add(nil))
	assert.Len(t, s.Components(), 1)
}

func TestServe_NoComponents(t *testing.T) {
	assert.Error(t, New(0).Serve(context.Background()))
}

func TestServe_GracefulShutdown(t *testing.T) {
	var order []string
	a, b := newFake("a", &order), newFake("b", &order)

	s := New(time.Second)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	<-a.started
	<-b.started
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	assert.Equal(t, []string{"b", "a"}, order, "stopped in reverse order")
	assert.Error(t, s.Serve(context.Background()), "second Serve")
	assert.Error(t, s.Add(newFake("late", nil)))
}

func TestServe_ComponentFailureStopsOthers(t *testing.T) {
	a, b := newFake("a", nil), newFake("b", nil)
	b.failErr = errors.New("listen failed")

	s := New(time.Second)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background()) }()

	<-a.started
	<-b.started
	close(b.fail)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "b: listen failed")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.EqualValues(t, 1, a.stops.Load())
}

func TestFunc(t *testing.T) {
	var served bool
	f := Func{
		ComponentName: "gc",
		ServeFunc: func(ctx context.Context) error {
			served = true
			return nil
		},
	}

	assert.Equal(t, "gc", f.Name())
	assert.NoError(t, f.Serve(context.Background()))
	assert.True(t, served)
	assert.NoError(t, f.Stop(context.Background()), "nil StopFunc")
}
