// Package api implements the broker's HTTP server (Gin-based): controller
// registration under /api, the health and metrics endpoints, the operator
// console bootstrap config, and SPA serving for the console assets.
package api
