// Package escalation defines the escalation record data model shared by the
// broker, the agent coordinator and the operator CLI.
package escalation
