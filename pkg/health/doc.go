// Package health turns a stream of probe results into a healthy or unhealthy
// verdict. A dependency is marked unhealthy only after FailureThreshold
// consecutive failures and becomes healthy again on the first success.
package health
