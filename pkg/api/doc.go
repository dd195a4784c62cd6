/*
Package api serves the operator HTTP API.

Endpoints:

	GET /api/v1/operations?page=0&size=20&applianceId=X   operation history, newest first
	GET /api/v1/operations/{id}                           one operation
	GET /api/v1/queue                                     remediation queue stats
	GET /api/v1/events                                    newline-delimited JSON event stream
	GET /health, /ready, /live                            health probes
	GET /metrics                                          Prometheus metrics

The API is read-only. Page size is capped at 100; a negative page or size is
rejected with 400. Errors are returned as {"error": "..."}.
*/
package api
