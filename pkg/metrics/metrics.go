package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loginguard_logins_classified_total",
		Help: "Logins classified, by verdict and source",
	}, []string{"classification", "source"})

	InvalidRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loginguard_invalid_requests_total",
		Help: "Scoring requests rejected by input validation",
	})

	GeoLookupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loginguard_geo_lookup_failures_total",
		Help: "Geo lookups that degraded to UNKNOWN",
	}, []string{"provider"})

	GeoCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loginguard_geo_cache_hits_total",
		Help: "Geo lookups served from the Redis cache",
	})

	UnknownCategories = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loginguard_unknown_category_total",
		Help: "Raw values encoded as UNKNOWN, by feature",
	}, []string{"feature"})

	AuditWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loginguard_audit_write_failures_total",
		Help: "Audit records a sink failed to write",
	}, []string{"sink"})

	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loginguard_audit_dropped_total",
		Help: "Audit records dropped because the async queue was full",
	})

	ScoringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loginguard_scoring_seconds",
		Help:    "Time spent assembling and scoring one login",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loginguard_alerts_triggered_total",
		Help: "Anomaly notifications emitted",
	})
)
