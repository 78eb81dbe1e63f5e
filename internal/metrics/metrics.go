package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantd_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Tenant resolution metrics, labeled by which source answered
	// ("tenant", "microsite", "none").
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantd_resolutions_total",
			Help: "Total number of domain resolutions by answering source",
		},
		[]string{"source"},
	)

	// Settings snapshot state machine metrics
	SnapshotKeepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantd_snapshot_keeps_total",
			Help: "Units of work that reused the installed snapshot",
		},
	)

	SnapshotResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantd_snapshot_resets_total",
			Help: "Snapshot resets by reason (domain_change, ttl, missing_domain, resolve_failed)",
		},
		[]string{"reason"},
	)

	SnapshotInstallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantd_snapshot_installs_total",
			Help: "Snapshots installed after a successful opt-in resolution",
		},
	)

	// Cache metrics, labeled by logical entry kind ("all_orgs", "org_value").
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantd_cache_hits_total",
			Help: "Cache hits by entry kind",
		},
		[]string{"kind"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantd_cache_misses_total",
			Help: "Cache misses by entry kind",
		},
		[]string{"kind"},
	)
)
