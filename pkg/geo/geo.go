// Package geo resolves an IP address to city, region, country and ISP.
// Lookups are best effort: every failure degrades to UNKNOWN fields.
package geo

import (
	"context"

	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

// Resolver never fails; unresolved fields are models.Unknown.
type Resolver interface {
	Resolve(ctx context.Context, ip string) models.GeoInfo
}

// lookup is the fallible half of a resolver.
type lookup interface {
	lookup(ctx context.Context, ip string) (models.GeoInfo, error)
	name() string
}

// resolve runs a single lookup attempt and substitutes UNKNOWN on failure.
func resolve(ctx context.Context, l lookup, ip string) models.GeoInfo {
	info, err := l.lookup(ctx, ip)
	if err != nil {
		logger.Log.Warnf("geo lookup failed: provider=%s ip=%s err=%v", l.name(), ip, err)
		metrics.GeoLookupFailures.WithLabelValues(l.name()).Inc()
		return models.UnknownGeo()
	}
	return fillUnknown(info)
}

func fillUnknown(g models.GeoInfo) models.GeoInfo {
	if g.City == "" {
		g.City = models.Unknown
	}
	if g.Region == "" {
		g.Region = models.Unknown
	}
	if g.Country == "" {
		g.Country = models.Unknown
	}
	if g.ISP == "" {
		g.ISP = models.Unknown
	}
	return g
}

// Static resolves every address to the same record.
type Static models.GeoInfo

func (s Static) Resolve(context.Context, string) models.GeoInfo {
	return fillUnknown(models.GeoInfo(s))
}

// Disabled returns a resolver that reports every field as UNKNOWN.
func Disabled() Resolver {
	return Static(models.UnknownGeo())
}
