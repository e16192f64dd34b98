// Package metrics registers the Prometheus collectors for callsync.
//
// Collectors are package-level and registered with the default registry; `callsync serve` exposes them at /metrics.
package metrics
