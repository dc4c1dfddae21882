// Package cmd defines the handoffctl command tree: list/get/resolve/delete
// for escalations, a live watch over the operator stream, and version.
package cmd
