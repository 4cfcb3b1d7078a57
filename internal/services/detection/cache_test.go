package detection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/redactiq/internal/models"
)

type countingDetector struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (d *countingDetector) Detect(ctx context.Context, text string, page int) ([]models.Candidate, error) {
	d.calls.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return nil, d.err
	}
	return []models.Candidate{{Text: text, Reason: "Name", Page: page, Source: models.SourceAI}}, nil
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("text", 1), CacheKey("text", 1))
	assert.NotEqual(t, CacheKey("text", 1), CacheKey("text", 2))
	assert.NotEqual(t, CacheKey("1text", 1), CacheKey("text", 11))
}

func TestCachedDetectorCallsOncePerPage(t *testing.T) {
	inner := &countingDetector{}
	d := NewCachedDetector(inner, NewCache(0))
	ctx := context.Background()

	first, err := d.Detect(ctx, "Jane", 1)
	require.NoError(t, err)
	second, err := d.Detect(ctx, "Jane", 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err = d.Detect(ctx, "Jane", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	// callers get their own copy
	first[0].Text = "changed"
	again, _ := d.Detect(ctx, "Jane", 1)
	assert.Equal(t, "Jane", again[0].Text)
}

func TestCachedDetectorConcurrentCallsShareOneRequest(t *testing.T) {
	inner := &countingDetector{delay: 20 * time.Millisecond}
	d := NewCachedDetector(inner, NewCache(0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Detect(context.Background(), "same page", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedDetectorCachesFailures(t *testing.T) {
	apiErr := errors.New("upstream failure")
	inner := &countingDetector{err: apiErr}
	d := NewCachedDetector(inner, NewCache(0))

	for i := 0; i < 3; i++ {
		_, err := d.Detect(context.Background(), "text", 1)
		assert.ErrorIs(t, err, apiErr)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCacheDoesNotKeepCancellation(t *testing.T) {
	cache := NewCache(0)
	calls := 0
	fn := func() ([]models.Candidate, error) {
		calls++
		return nil, context.Canceled
	}

	_, err := cache.Do("k", fn)
	assert.ErrorIs(t, err, context.Canceled)
	_, _ = cache.Do("k", fn)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheFollowerOutlivesLeaderCancellation(t *testing.T) {
	cache := NewCache(0)
	leaderCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	leaderErr := make(chan error, 1)
	go func() {
		_, err := cache.Do("k", func() ([]models.Candidate, error) {
			close(started)
			<-leaderCtx.Done()
			return nil, leaderCtx.Err()
		})
		leaderErr <- err
	}()
	<-started

	type result struct {
		candidates []models.Candidate
		err        error
	}
	follower := make(chan result, 1)
	go func() {
		candidates, err := cache.Do("k", func() ([]models.Candidate, error) {
			return []models.Candidate{{Text: "Jane", Reason: "Name", Page: 1, Source: models.SourceAI}}, nil
		})
		follower <- result{candidates, err}
	}()

	// let the follower join the in-flight call before the leader gives up
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	got := <-follower
	require.NoError(t, got.err)
	require.Len(t, got.candidates, 1)
	assert.Equal(t, "Jane", got.candidates[0].Text)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheEvictionAndReset(t *testing.T) {
	cache := NewCache(2)
	value := func() ([]models.Candidate, error) { return nil, nil }

	_, _ = cache.Do("a", value)
	_, _ = cache.Do("b", value)
	_, _ = cache.Do("c", value)
	assert.Equal(t, 2, cache.Len())

	_, ok := cache.lookup("a")
	assert.False(t, ok, "oldest entry is evicted first")

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}
