// Package apiresponses provides standardized HTTP response helpers for the
// broker API.
package apiresponses
