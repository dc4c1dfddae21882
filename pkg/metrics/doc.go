// Package metrics defines Prometheus metrics for the handoff broker, covering
// escalation lifecycle, operator streams, reply delivery, mail and audit.
package metrics
