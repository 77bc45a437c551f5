package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(Item{Path: fmt.Sprintf("f%d", i)}))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		it, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("f%d", i), it.Path)
		assert.False(t, it.EnqueuedAt.IsZero())
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 200

	q := NewQueue(nil)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Push(Item{Path: fmt.Sprintf("%d/%d", p, i), RequestID: fmt.Sprint(p)}))
			}
		}(p)
	}

	seen := map[string]bool{}
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for n := 0; n < producers*perProducer; n++ {
		it, err := q.Pop(ctx)
		require.NoError(t, err)
		require.False(t, seen[it.Path], "duplicate %s", it.Path)
		seen[it.Path] = true

		var p, i int
		_, err = fmt.Sscanf(it.Path, "%d/%d", &p, &i)
		require.NoError(t, err)
		require.Greater(t, i, last[p], "producer %d reordered", p)
		last[p] = i
	}
	wg.Wait()
	assert.Len(t, seen, producers*perProducer)
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := NewQueue(nil)

	got := make(chan Item, 1)
	go func() {
		it, err := q.Pop(context.Background())
		if err == nil {
			got <- it
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Push(Item{Path: "late"}))
	select {
	case it := <-got:
		assert.Equal(t, "late", it.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueuePopContextCancelled(t *testing.T) {
	q := NewQueue(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseAppendsSentinel(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Push(Item{Path: "a"}))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push(Item{Path: "b"}), ErrClosed)
	assert.Equal(t, 1, q.Len())

	it, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", it.Path)
	assert.False(t, it.stop)

	it, err = q.Pop(context.Background())
	require.NoError(t, err)
	assert.True(t, it.stop)
}

func TestQueuePushCannotForgeSentinel(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Push(Item{Path: "x", stop: true}))

	it, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.False(t, it.stop)
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Push(Item{Path: "a"}))
	require.NoError(t, q.Push(Item{Path: "b"}))
	q.Close()

	items := q.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Path)
	assert.Equal(t, "b", items[1].Path)
	assert.Equal(t, 0, q.Len())
	assert.ErrorIs(t, q.Push(Item{Path: "c"}), ErrClosed)
}
