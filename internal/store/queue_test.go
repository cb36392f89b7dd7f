package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQueue_LaneIsFIFO(t *testing.T) {
	q := NewWriteQueue()
	defer q.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var order []int

	release := make(chan struct{})
	first := q.Submit(ctx, "moby", func(context.Context) error {
		<-release // slow first write
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		return nil
	})

	var results []<-chan error
	for i := 2; i <= 5; i++ {
		results = append(results, q.Submit(ctx, "moby", func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}

	close(release)
	require.NoError(t, <-first)
	for _, r := range results {
		require.NoError(t, <-r)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
}

func TestWriteQueue_LanesAreIndependent(t *testing.T) {
	q := NewWriteQueue()
	defer q.Close()
	ctx := context.Background()

	block := make(chan struct{})
	defer close(block)
	_ = q.Submit(ctx, "slow", func(context.Context) error {
		<-block
		return nil
	})

	select {
	case err := <-q.Submit(ctx, "fast", func(context.Context) error { return nil }):
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fast lane blocked behind slow lane")
	}
}

func TestWriteQueue_SkipsCancelledWork(t *testing.T) {
	q := NewWriteQueue()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := <-q.Submit(ctx, "moby", func(context.Context) error {
		ran = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestWriteQueue_CloseDrainsAndRejects(t *testing.T) {
	q := NewWriteQueue()
	ctx := context.Background()

	done := q.Submit(ctx, "moby", func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	q.Close()

	assert.NoError(t, <-done)
	assert.Equal(t, 0, q.Pending())
	assert.ErrorIs(t, q.Do(ctx, "moby", func(context.Context) error { return nil }), ErrClosed)
}
