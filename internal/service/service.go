package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-resolver/internal/cache"
	"github.com/kjstillabower/weather-resolver/internal/cachekey"
	"github.com/kjstillabower/weather-resolver/internal/client"
	"github.com/kjstillabower/weather-resolver/internal/freshness"
	"github.com/kjstillabower/weather-resolver/internal/models"
	"github.com/kjstillabower/weather-resolver/internal/observability"
	"github.com/kjstillabower/weather-resolver/internal/store"
)

var (
	// ErrNotConfigured is returned when no upstream credential is present.
	ErrNotConfigured = errors.New("weather service is not configured")
	// ErrLocationNotResolved is returned for a Location without coordinates.
	ErrLocationNotResolved = errors.New("location has not been geocoded")
	// ErrRecordStore wraps failures of the authoritative record store.
	ErrRecordStore = errors.New("weather record store failure")
)

// Resolution is a successful resolve: the authoritative record and whether it
// was served without a live upstream call.
type Resolution struct {
	Record          models.WeatherRecord
	ServedFromCache bool
}

// credentialed is implemented by clients that can report a missing credential.
type credentialed interface {
	Configured() bool
}

// Options configures optional Resolver behavior.
type Options struct {
	// CoalesceEnabled collapses concurrent upstream fetches for one cache key.
	CoalesceEnabled bool
	// CoalesceTimeout bounds how long a caller waits on a shared fetch.
	CoalesceTimeout time.Duration
	Logger          *zap.Logger
}

// Resolver serves weather for a Location from the freshest tier available:
// the stored record, then the secondary cache, then one upstream fetch.
// It holds no per-call state and is safe for concurrent use.
type Resolver struct {
	client          client.WeatherClient
	cache           cache.Cache
	records         store.RecordStore
	logger          *zap.Logger
	now             func() time.Time
	stampedeTracker *stampedeTracker
	coalescer       *fetchCoalescer // nil when coalescing is disabled
}

// NewResolver wires a Resolver. A client implementing Configured() bool is checked
// for a credential before every resolve.
func NewResolver(c client.WeatherClient, ch cache.Cache, records store.RecordStore, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var coalescer *fetchCoalescer
	if opts.CoalesceEnabled && opts.CoalesceTimeout > 0 {
		coalescer = newFetchCoalescer(opts.CoalesceTimeout)
	}
	return &Resolver{
		client:          c,
		cache:           ch,
		records:         records,
		logger:          logger,
		now:             time.Now,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
	}
}

// loggerFromContext returns the request-scoped logger if middleware stored one.
func (r *Resolver) loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return r.logger
}

func (r *Resolver) configured() bool {
	if c, ok := r.client.(credentialed); ok {
		return c.Configured()
	}
	return r.client != nil
}

// Resolve returns current weather for loc.
//
// A fresh stored record is returned as-is with no writes. A fresh cache entry is
// copied into the record (keeping the entry's GeneratedAt). Otherwise exactly one
// upstream call is made; on success the cache entry is written before the record.
// Upstream failures are returned classified and nothing is written.
func (r *Resolver) Resolve(ctx context.Context, loc models.Location) (Resolution, error) {
	if !r.configured() {
		return r.fail(ErrNotConfigured)
	}
	if !loc.HasCoordinates() {
		return r.fail(ErrLocationNotResolved)
	}

	logger := r.loggerFromContext(ctx)
	start := r.now()

	rec, ok, err := r.records.GetRecordFor(ctx, loc.ID)
	if err != nil {
		return r.fail(fmt.Errorf("%w: get record: %v", ErrRecordStore, err))
	}
	if ok && freshness.IsFresh(rec.GeneratedAt, start) {
		observability.ResolutionsTotal.WithLabelValues("record").Inc()
		logger.Debug("weather served", zap.String("locationId", loc.ID), zap.String("tier", "record"))
		return Resolution{Record: rec, ServedFromCache: true}, nil
	}

	key := cachekey.Derive(loc)
	if entry, hit := r.cacheGet(ctx, logger, key, start); hit {
		rec, err := r.records.UpsertRecordFor(ctx, loc.ID, entry.Observation, entry.GeneratedAt)
		if err != nil {
			return r.fail(fmt.Errorf("%w: upsert record: %v", ErrRecordStore, err))
		}
		observability.RecordWritesTotal.WithLabelValues("cache").Inc()
		observability.ResolutionsTotal.WithLabelValues("cache").Inc()
		logger.Debug("weather served", zap.String("locationId", loc.ID), zap.String("tier", "cache"))
		return Resolution{Record: rec, ServedFromCache: true}, nil
	}

	entry, err := r.fetch(ctx, logger, key, cachekey.QueryParam(loc))
	if err != nil {
		return r.fail(err)
	}
	rec, err = r.records.UpsertRecordFor(ctx, loc.ID, entry.Observation, entry.GeneratedAt)
	if err != nil {
		return r.fail(fmt.Errorf("%w: upsert record: %v", ErrRecordStore, err))
	}
	observability.RecordWritesTotal.WithLabelValues("upstream").Inc()
	observability.ResolutionsTotal.WithLabelValues("upstream").Inc()
	logger.Debug("weather served",
		zap.String("locationId", loc.ID),
		zap.String("tier", "upstream"),
		zap.Duration("duration", r.now().Sub(start)))
	return Resolution{Record: rec, ServedFromCache: false}, nil
}

func (r *Resolver) fail(err error) (Resolution, error) {
	observability.ResolutionsTotal.WithLabelValues("error").Inc()
	observability.ResolutionErrorsTotal.WithLabelValues(Reason(err)).Inc()
	return Resolution{}, err
}

// cacheGet reads the secondary cache. Errors and entries past the freshness
// window are treated as misses.
func (r *Resolver) cacheGet(ctx context.Context, logger *zap.Logger, key string, now time.Time) (models.CacheEntry, bool) {
	getStart := time.Now()
	entry, ok, err := r.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return models.CacheEntry{}, false
	}
	if !ok {
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "miss").Observe(getDuration)
		return models.CacheEntry{}, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "hit").Observe(getDuration)
	if !freshness.IsFresh(entry.GeneratedAt, now) {
		logger.Debug("cache entry past freshness window", zap.String("key", key))
		return models.CacheEntry{}, false
	}
	return entry, true
}

// fetch performs the single upstream call for key and writes the cache entry.
// With coalescing enabled, concurrent callers for the same key share one call.
func (r *Resolver) fetch(ctx context.Context, logger *zap.Logger, key, query string) (models.CacheEntry, error) {
	concurrentMisses := r.stampedeTracker.RecordMiss(key)
	defer r.stampedeTracker.RecordHit(key)
	if concurrentMisses > 1 {
		kind := observability.KeyKindLabel(key)
		observability.CacheStampedeDetectedTotal.WithLabelValues(kind).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(kind).Observe(float64(concurrentMisses))
	}

	logger.Debug("cache miss, fetching upstream", zap.String("key", key), zap.Int("fetchesInFlight", concurrentMisses))

	do := func(ctx context.Context) (models.CacheEntry, error) {
		obs, err := r.client.FetchLive(ctx, query)
		if err != nil {
			return models.CacheEntry{}, fmt.Errorf("fetch weather for %s: %w", query, err)
		}
		entry := models.CacheEntry{Observation: obs, GeneratedAt: r.now().UTC()}
		r.cacheSet(ctx, logger, key, entry)
		return entry, nil
	}

	if r.coalescer == nil {
		return do(ctx)
	}
	entry, shared, err := r.coalescer.Do(ctx, key, do)
	if shared {
		observability.CoalescedFetchesTotal.Inc()
	}
	return entry, err
}

// cacheSet writes entry with the freshness window as TTL. A failed write is
// logged and does not fail the resolve.
func (r *Resolver) cacheSet(ctx context.Context, logger *zap.Logger, key string, entry models.CacheEntry) {
	setStart := time.Now()
	if err := r.cache.Set(ctx, key, entry, freshness.Window); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
