// Package metrics provides operational metrics for the header service.
//
// # Metric Categories
//
//   - Fetch failures: backend collaborator errors by source
//   - Stale responses: fetch results discarded because a newer request won
//   - Recomputes: menu aggregations performed
//
// # Integration
//
// A Recorder owns its own Prometheus registry; the HTTP server exposes it in
// the Prometheus text format at /metrics. A nil *Recorder is valid and
// records nothing.
package metrics
