/*
Package metrics provides Prometheus metrics and health reporting for Sentinel.

All collectors are package-level variables registered with the default
Prometheus registry at init and exposed by Handler on /metrics. They cover
every stage of the remediation pipeline:

	sentinel_scan_cycles_total{result}          scan cycles (success, failure)
	sentinel_scan_duration_seconds              scan cycle latency
	sentinel_appliances_seen / _stale           last completed cycle totals
	sentinel_queue_offers_total{outcome}        admitted, duplicate, dropped
	sentinel_queue_backlog / _pending           queue occupancy (Collector)
	sentinel_dispatch_rejections_total          pool rejections requeued
	sentinel_remediations_total{outcome}        completed, drain_failed, ...
	sentinel_operations_recorded_total{type}    DRAIN / REMEDIATE records
	sentinel_appliance_api_requests_total       outbound API calls

Timer measures a duration and observes it on a histogram:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ScanDuration)

The health registry (RegisterComponent, UpdateComponent, GetHealth,
GetReadiness) backs the /health, /ready and /live endpoints. The service is
ready once storage, inventory and api all report healthy; inventory is
registered after the first scan cycle completes.
*/
package metrics
