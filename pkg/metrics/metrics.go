package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch results
const (
	ResultOK       = "ok"
	ResultEmpty    = "empty"
	ResultError    = "error"
	ResultDisabled = "disabled"
)

var (
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_source_fetches_total",
			Help: "Upstream source fetches by source, record kind and result",
		},
		[]string{"source", "kind", "result"},
	)

	SourceRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_source_records_total",
			Help: "Records produced by each source",
		},
		[]string{"source", "kind"},
	)

	DemoFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_demo_fallbacks_total",
			Help: "Aggregations answered with demo seed data in live mode",
		},
		[]string{"kind", "reason"},
	)

	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_geo_lookups_total",
			Help: "Geolocation lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_proxy_requests_total",
			Help: "Proxy endpoint requests by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	FeedSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatlens_feed_threats",
			Help: "Threats currently held in the live feed",
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatlens_notifications_total",
			Help: "Critical threat notifications by result",
		},
		[]string{"result"},
	)
)
