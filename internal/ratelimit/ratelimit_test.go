package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter(t *testing.T) {
	t.Run("allows burst then denies", func(t *testing.T) {
		l := NewLimiter(3, 3)
		for i := 0; i < 3; i++ {
			assert.True(t, l.Allow(), "request %d within burst", i+1)
		}
		assert.False(t, l.Allow())
	})

	t.Run("non-positive burst becomes one", func(t *testing.T) {
		l := NewLimiter(0.5, 0)
		assert.True(t, l.Allow())
		assert.False(t, l.Allow())
	})
}

func TestLimiter_Wait(t *testing.T) {
	t.Run("burst requests are instant", func(t *testing.T) {
		l := NewLimiter(100, 5)
		start := time.Now()
		for i := 0; i < 5; i++ {
			require.NoError(t, l.Wait(context.Background()))
		}
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("cancelled context returns error", func(t *testing.T) {
		l := NewLimiter(0.1, 1)
		require.True(t, l.Allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, l.Wait(ctx))
	})
}

func TestLimiter_SetRate(t *testing.T) {
	l := NewLimiter(0.001, 1)
	require.True(t, l.Allow())
	assert.False(t, l.Allow())

	l.SetRate(1000)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.Allow())
}

func TestHostGate_WaitAndPulse(t *testing.T) {
	t.Run("first pulse is immediate", func(t *testing.T) {
		g := NewHostGate()
		start := time.Now()
		require.NoError(t, g.WaitAndPulse(context.Background(), "example.org", time.Second))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("same host waits for interval", func(t *testing.T) {
		g := NewHostGate()
		interval := 80 * time.Millisecond
		ctx := context.Background()

		start := time.Now()
		require.NoError(t, g.WaitAndPulse(ctx, "example.org", interval))
		require.NoError(t, g.WaitAndPulse(ctx, "EXAMPLE.org", interval))
		assert.GreaterOrEqual(t, time.Since(start), interval-10*time.Millisecond)
		assert.Equal(t, 1, g.Len())
	})

	t.Run("different hosts do not block each other", func(t *testing.T) {
		g := NewHostGate()
		interval := time.Second
		ctx := context.Background()
		require.NoError(t, g.WaitAndPulse(ctx, "a.example", interval))

		start := time.Now()
		require.NoError(t, g.WaitAndPulse(ctx, "b.example", interval))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
		assert.Equal(t, 2, g.Len())
	})

	t.Run("concurrent callers on one host are serialized", func(t *testing.T) {
		g := NewHostGate()
		interval := 30 * time.Millisecond
		ctx := context.Background()

		var (
			mu    sync.Mutex
			times []time.Time
			wg    sync.WaitGroup
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, g.WaitAndPulse(ctx, "h", interval))
				mu.Lock()
				times = append(times, time.Now())
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Len(t, times, 4)
		first, last := times[0], times[0]
		for _, ts := range times {
			if ts.Before(first) {
				first = ts
			}
			if ts.After(last) {
				last = ts
			}
		}
		assert.GreaterOrEqual(t, last.Sub(first), 3*interval-15*time.Millisecond)
	})

	t.Run("zero interval never blocks or tracks", func(t *testing.T) {
		g := NewHostGate()
		require.NoError(t, g.WaitAndPulse(context.Background(), "h", 0))
		assert.Equal(t, 0, g.Len())
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		g := NewHostGate()
		require.NoError(t, g.WaitAndPulse(context.Background(), "h", time.Minute))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.Error(t, g.WaitAndPulse(ctx, "h", time.Minute))
	})
}

func TestHostKey(t *testing.T) {
	assert.Equal(t, "export.arxiv.org", HostKey("https://Export.arXiv.org/api/query?x=1"))
	assert.Equal(t, "example.org", HostKey("http://example.org:8080/a.pdf"))
	assert.Equal(t, "not a url", HostKey("Not A URL"))
}
