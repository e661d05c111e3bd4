// ABOUTME: Tests for the render cache: hits, TTL expiry, sweeping, error handling and concurrency.
// ABOUTME: Uses a counting fake renderer and a controllable clock.
package render

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

type fakeRenderer struct {
	calls  atomic.Int64
	output []byte
	err    error
}

func (f *fakeRenderer) render(ctx context.Context, dotText string, format string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func newTestCache(f *fakeRenderer, ttl time.Duration) (*Cache, *time.Time) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(f.render, ttl)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestCacheReturnsCachedResult(t *testing.T) {
	f := &fakeRenderer{output: []byte("<svg/>")}
	c, _ := newTestCache(f, time.Minute)

	for i := 0; i < 3; i++ {
		out, err := c.RenderDOTSource(context.Background(), sampleDOT, "svg")
		require.NoError(t, err)
		assert.Equal(t, "<svg/>", string(out))
	}
	assert.EqualValues(t, 1, f.calls.Load())
	hits, misses := c.Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
}

func TestCacheKeysIncludeFormat(t *testing.T) {
	f := &fakeRenderer{output: []byte("x")}
	c, _ := newTestCache(f, time.Minute)

	_, _ = c.RenderDOTSource(context.Background(), sampleDOT, "svg")
	_, _ = c.RenderDOTSource(context.Background(), sampleDOT, "png")
	assert.EqualValues(t, 2, f.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCacheExpiresAndSweeps(t *testing.T) {
	f := &fakeRenderer{output: []byte("x")}
	c, clock := newTestCache(f, time.Minute)

	_, _ = c.RenderDOTSource(context.Background(), "graph a {}", "svg")
	*clock = clock.Add(2 * time.Minute)
	_, _ = c.RenderDOTSource(context.Background(), "graph b {}", "svg")
	assert.Equal(t, 1, c.Len())

	_, _ = c.RenderDOTSource(context.Background(), "graph a {}", "svg")
	assert.EqualValues(t, 3, f.calls.Load())
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	f := &fakeRenderer{err: errors.New("boom")}
	c, _ := newTestCache(f, time.Minute)

	_, err := c.RenderDOTSource(context.Background(), sampleDOT, "svg")
	require.Error(t, err)
	_, err = c.RenderDOTSource(context.Background(), sampleDOT, "svg")
	require.Error(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
	assert.Zero(t, c.Len())
}

func TestCacheClear(t *testing.T) {
	f := &fakeRenderer{output: []byte("x")}
	c, _ := newTestCache(f, time.Minute)
	_, _ = c.RenderDOTSource(context.Background(), sampleDOT, "svg")

	c.Clear()
	assert.Zero(t, c.Len())
	hits, misses := c.Stats()
	assert.Zero(t, hits+misses)
}

func TestCacheConcurrentAccess(t *testing.T) {
	f := &fakeRenderer{output: []byte("x")}
	c := NewCache(f.render, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.RenderDOTSource(context.Background(), sampleDOT, "svg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
