// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Active and registered server connections
//   - Heartbeat probes and evictions
//   - Client connection attempts and scheduled reconnects
//
// All recorder methods are safe on a nil receiver so components can run
// without metrics.
package metrics
