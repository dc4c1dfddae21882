// Package broker implements the escalation broker: the in-memory registry of
// escalation records, the operator fan-out hub, the per-escalation agent
// reply router, and the REST plus websocket surface combining them.
package broker
