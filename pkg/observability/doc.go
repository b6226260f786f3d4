// Package observability provides Prometheus metrics, health probes and
// OpenTelemetry tracing for the access engine.
//
// Metrics cover the three subsystems: permission checks (by outcome and
// reason), location resolution latency, and resource lock activity.
// Health probes expose liveness and readiness endpoints suitable for
// Kubernetes; readiness checks the database and, when configured, Redis.
package observability
