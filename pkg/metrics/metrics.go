package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scanner metrics
	ScanCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_scan_cycles_total",
			Help: "Total number of inventory scan cycles by result",
		},
		[]string{"result"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_scan_duration_seconds",
			Help:    "Inventory scan cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ScanPagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_scan_pages_total",
			Help: "Total number of inventory pages fetched",
		},
	)

	AppliancesSeen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_appliances_seen",
			Help: "Appliances seen in the last completed scan cycle",
		},
	)

	AppliancesStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_appliances_stale",
			Help: "Stale appliances found in the last completed scan cycle",
		},
	)

	// Queue metrics
	QueueOffersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_queue_offers_total",
			Help: "Appliances offered to the remediation queue by outcome",
		},
		[]string{"outcome"},
	)

	QueueReleaseUnknownTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_queue_release_unknown_total",
			Help: "Releases of appliance ids that were not claimed",
		},
	)

	QueueBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_queue_backlog",
			Help: "Appliances waiting in the remediation backlog",
		},
	)

	QueuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_queue_pending",
			Help: "Appliance ids currently claimed (queued, dispatched or executing)",
		},
	)

	// Dispatch and workflow metrics
	DispatchRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_dispatch_rejections_total",
			Help: "Dispatches rejected by the worker pool and requeued",
		},
	)

	RemediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_remediations_total",
			Help: "Remediation attempts by outcome",
		},
		[]string{"outcome"},
	)

	RemediationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_remediation_duration_seconds",
			Help:    "Duration of the drain and remediate workflow in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_workers_busy",
			Help: "Workers currently executing a remediation",
		},
	)

	OperationsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_operations_recorded_total",
			Help: "Operation records persisted by type",
		},
		[]string{"type"},
	)

	OperationRecordFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_operation_record_failures_total",
			Help: "Operation records that failed to persist by type",
		},
		[]string{"type"},
	)

	// Appliance API client metrics
	ApplianceAPIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_appliance_api_requests_total",
			Help: "Appliance API requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	ApplianceAPIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_appliance_api_request_duration_seconds",
			Help:    "Appliance API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// HTTP API metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "Total number of HTTP API requests by route and status",
		},
		[]string{"route", "status"},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_events_dropped_total",
			Help: "Lifecycle events dropped because the broker buffer was full",
		},
	)
)

func init() {
	prometheus.MustRegister(ScanCyclesTotal)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(ScanPagesTotal)
	prometheus.MustRegister(AppliancesSeen)
	prometheus.MustRegister(AppliancesStale)
	prometheus.MustRegister(QueueOffersTotal)
	prometheus.MustRegister(QueueReleaseUnknownTotal)
	prometheus.MustRegister(QueueBacklog)
	prometheus.MustRegister(QueuePending)
	prometheus.MustRegister(DispatchRejectionsTotal)
	prometheus.MustRegister(RemediationsTotal)
	prometheus.MustRegister(RemediationDuration)
	prometheus.MustRegister(WorkersBusy)
	prometheus.MustRegister(OperationsRecordedTotal)
	prometheus.MustRegister(OperationRecordFailuresTotal)
	prometheus.MustRegister(ApplianceAPIRequestsTotal)
	prometheus.MustRegister(ApplianceAPIRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(EventsDroppedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
