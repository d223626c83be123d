package geo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

const cacheKeyPrefix = "geo:"

// CachedResolver keeps resolved records in Redis. Cache errors fall through
// to the wrapped resolver; all-UNKNOWN results are never cached.
type CachedResolver struct {
	next  Resolver
	redis redis.Cmdable
	ttl   time.Duration
}

func NewCached(next Resolver, client redis.Cmdable, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, redis: client, ttl: ttl}
}

func (c *CachedResolver) Resolve(ctx context.Context, ip string) models.GeoInfo {
	key := cacheKeyPrefix + ip

	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var info models.GeoInfo
		if jerr := json.Unmarshal([]byte(cached), &info); jerr == nil {
			metrics.GeoCacheHits.Inc()
			return fillUnknown(info)
		}
	case err != redis.Nil:
		logger.Log.Debugf("geo cache read failed: ip=%s err=%v", ip, err)
	}

	info := c.next.Resolve(ctx, ip)
	if info.IsUnknown() {
		return info
	}

	if data, err := json.Marshal(info); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Log.Debugf("geo cache write failed: ip=%s err=%v", ip, err)
		}
	}
	return info
}
