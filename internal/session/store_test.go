package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	s.SetURL(1, "https://a.example/1")
	s.SetURL(1, "https://b.example/2")

	sess, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "https://b.example/2", sess.PendingURL)
	assert.False(t, sess.Busy)
}

func TestMemoryStore_AcquireIsExclusive(t *testing.T) {
	s := NewMemoryStore()
	s.SetURL(7, "https://a.example/clip")

	const n = 64
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Acquire(7, func() {}) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.True(t, s.Busy(7))

	sess, _ := s.Get(7)
	assert.Equal(t, "https://a.example/clip", sess.PendingURL)

	s.Release(7)
	assert.False(t, s.Busy(7))
	assert.True(t, s.Acquire(7, nil))
}

func TestMemoryStore_CompareAndSwapBusy(t *testing.T) {
	s := NewMemoryStore()
	assert.False(t, s.CompareAndSwapBusy(3, true, false))
	assert.True(t, s.CompareAndSwapBusy(3, false, true))
	assert.False(t, s.CompareAndSwapBusy(3, false, true))
	assert.True(t, s.CompareAndSwapBusy(3, true, false))

	_, ok := s.Get(3)
	assert.False(t, ok, "idle session without url is dropped")
}

func TestMemoryStore_ClearKeepsBusy(t *testing.T) {
	s := NewMemoryStore()
	s.SetURL(5, "https://a.example/x")
	require.True(t, s.Acquire(5, nil))

	s.Clear(5)
	sess, ok := s.Get(5)
	require.True(t, ok)
	assert.Empty(t, sess.PendingURL)
	assert.True(t, sess.Busy)
}

func TestMemoryStore_Cancel(t *testing.T) {
	s := NewMemoryStore()
	assert.False(t, s.Cancel(9))

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.Acquire(9, cancel))
	assert.True(t, s.Cancel(9))
	assert.Error(t, ctx.Err())

	s.Release(9)
	assert.False(t, s.Cancel(9))
}

func TestMemoryStore_Stats(t *testing.T) {
	s := NewMemoryStore()
	s.SetURL(1, "https://a.example/1")
	s.SetURL(2, "https://a.example/2")
	s.Acquire(2, nil)
	s.Acquire(3, nil)

	assert.Equal(t, Stats{Sessions: 3, Busy: 2, Pending: 2}, s.Stats())
}
