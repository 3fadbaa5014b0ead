package shipping

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/redis"
)

const cacheScope = "shipping"

// CacheRecorder counts cache lookups by result (hit, miss, error).
type CacheRecorder interface {
	IncShippingCache(result string)
}

// CachedQuoter serves totals-only quotes through a Redis read-through cache.
// Cache failures fall back to direct computation.
type CachedQuoter struct {
	resolver *Resolver
	cache    redis.CacheStore
	ttl      time.Duration
	logg     *logger.Logger
	metrics  CacheRecorder
}

func NewCachedQuoter(resolver *Resolver, cache redis.CacheStore, ttl time.Duration, logg *logger.Logger, metrics CacheRecorder) *CachedQuoter {
	return &CachedQuoter{resolver: resolver, cache: cache, ttl: ttl, logg: logg, metrics: metrics}
}

func (q *CachedQuoter) QuoteForTotals(ctx context.Context, dest Destination, weightGrams, valueCents int64) Quote {
	if q.cache == nil {
		return q.resolver.QuoteForTotals(dest, weightGrams, valueCents, false)
	}

	key := q.cache.CacheKey(cacheScope,
		NormalizeCountry(dest.Country),
		NormalizeCity(dest.City),
		strconv.FormatInt(weightGrams, 10),
		strconv.FormatInt(valueCents, 10),
	)

	raw, err := q.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached Quote
		jerr := json.Unmarshal([]byte(raw), &cached)
		if jerr == nil {
			q.record("hit")
			return cached
		}
		q.warn(ctx, "shipping cache entry corrupt", jerr)
	case redis.IsNil(err):
		q.record("miss")
	default:
		q.record("error")
		q.warn(ctx, "shipping cache read failed", err)
	}

	quote := q.resolver.QuoteForTotals(dest, weightGrams, valueCents, false)
	encoded, err := json.Marshal(quote)
	if err != nil {
		q.warn(ctx, "shipping cache encode failed", err)
		return quote
	}
	if err := q.cache.Set(ctx, key, string(encoded), q.ttl); err != nil {
		q.record("error")
		q.warn(ctx, "shipping cache write failed", err)
	}
	return quote
}

func (q *CachedQuoter) record(result string) {
	if q.metrics != nil {
		q.metrics.IncShippingCache(result)
	}
}

func (q *CachedQuoter) warn(ctx context.Context, msg string, err error) {
	if q.logg == nil {
		return
	}
	ctx = q.logg.WithField(ctx, "error", err.Error())
	q.logg.Warn(ctx, msg)
}
