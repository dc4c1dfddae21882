// Package config loads the handoff YAML configuration and fills unset fields
// with defaults for the broker, agent coordinator, mail notifier, audit trail
// and telemetry.
package config
