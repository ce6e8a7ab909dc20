package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

// fetchCoalescer collapses concurrent upstream fetches for the same cache key into
// one call. Every caller receives the shared result; each still writes its own record.
type fetchCoalescer struct {
	group   singleflight.Group
	timeout time.Duration
}

func newFetchCoalescer(timeout time.Duration) *fetchCoalescer {
	return &fetchCoalescer{timeout: timeout}
}

// Do runs fn once per in-flight key. shared reports whether the result was
// delivered to more than one caller. A caller stops waiting when its context ends
// or the coalesce timeout elapses; the shared fetch keeps running for the others.
func (fc *fetchCoalescer) Do(ctx context.Context, key string, fn func(ctx context.Context) (models.CacheEntry, error)) (models.CacheEntry, bool, error) {
	// The shared call must not be cut short by whichever caller started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := fc.group.DoChan(key, func() (interface{}, error) {
		return fn(fetchCtx)
	})

	waitCtx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.CacheEntry{}, res.Shared, res.Err
		}
		return res.Val.(models.CacheEntry), res.Shared, nil
	case <-waitCtx.Done():
		return models.CacheEntry{}, false, waitCtx.Err()
	}
}
