package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsConcurrently(t *testing.T) {
	p := New(2)
	var running atomic.Int32
	var maxRunning atomic.Int32
	release := make(chan struct{})

	for i := 0; i < 2; i++ {
		err := p.Submit(context.Background(), func() {
			n := running.Add(1)
			for {
				old := maxRunning.Load()
				if n <= old || maxRunning.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
		require.NoError(t, err)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), maxRunning.Load())
	close(release)
	p.Close()
}

func TestSubmitBlocksWhenFull(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.Error(t, err)

	close(release)
	p.Close()
}

func TestCloseWaitsForInFlightWork(t *testing.T) {
	p := New(4)
	var done atomic.Bool
	require.NoError(t, p.Submit(context.Background(), func() {
		time.Sleep(20 * time.Millisecond)
		done.Store(true)
	}))
	p.Close()
	assert.True(t, done.Load())
}
