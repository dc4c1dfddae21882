// Package audit records escalation lifecycle events (created, resolved,
// deleted) to pluggable sinks: structured logs always, Kafka when configured.
// Writes are queued so the broker's request path is never blocked by a slow
// or unavailable sink.
package audit
