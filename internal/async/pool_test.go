package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T, R any](p *Pool[T, R]) []Outcome[T, R] {
	var out []Outcome[T, R]
	for o := range p.Results() {
		out = append(out, o)
	}
	return out
}

func TestPoolRunsEveryJobWithinWorkerBound(t *testing.T) {
	var running, peak atomic.Int32
	handle := func(ctx context.Context, job Job[int]) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		if job.Payload == 3 {
			return 0, errors.New("boom")
		}
		return job.Payload * 2, nil
	}

	p := NewPool[int, int](context.Background(), handle, nil, WithWorkers(2), WithQueueSize(2))
	go func() {
		for i := 1; i <= 8; i++ {
			assert.NoError(t, p.Enqueue(context.Background(), Job[int]{Payload: i}))
		}
		p.Shutdown(context.Background())
	}()

	outs := drain(p)
	require.Len(t, outs, 8)
	sum, failures := 0, 0
	for _, o := range outs {
		if o.Err != nil {
			failures++
			continue
		}
		sum += o.Result
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 2*(36-3), sum)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	handle := func(ctx context.Context, job Job[int]) (int, error) {
		if job.Payload == 0 {
			cancel()
			<-release
		}
		return job.Payload, ctx.Err()
	}

	p := NewPool[int, int](ctx, handle, nil, WithWorkers(1), WithQueueSize(4))
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Enqueue(context.Background(), Job[int]{Payload: i}))
	}
	close(release)
	p.Shutdown(context.Background())

	outs := drain(p)
	require.Len(t, outs, 4)
	assert.False(t, outs[0].Skipped)
	assert.ErrorIs(t, outs[0].Err, context.Canceled)
	for _, o := range outs[1:] {
		assert.True(t, o.Skipped)
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestPoolProcessTimeout(t *testing.T) {
	handle := func(ctx context.Context, job Job[string]) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	p := NewPool[string, string](context.Background(), handle, nil, WithProcessTimeout(20*time.Millisecond))
	require.NoError(t, p.Enqueue(context.Background(), Job[string]{ID: "slow"}))
	p.Shutdown(context.Background())

	outs := drain(p)
	require.Len(t, outs, 1)
	assert.ErrorIs(t, outs[0].Err, context.DeadlineExceeded)
}

func TestEnqueueAfterShutdown(t *testing.T) {
	p := NewPool[int, int](context.Background(), func(context.Context, Job[int]) (int, error) { return 0, nil }, nil)
	p.Shutdown(context.Background())
	assert.ErrorIs(t, p.Enqueue(context.Background(), Job[int]{}), ErrQueueClosed)
	assert.Empty(t, drain(p))
}
