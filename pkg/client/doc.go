// Package client is the Go client for the handoff broker: typed wrappers
// around the escalation REST endpoints plus dialers for the operator and
// agent event streams. It is used by the agent coordinator and handoffctl.
package client
