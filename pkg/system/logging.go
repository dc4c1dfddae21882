// SPDX-FileCopyrightText: 2026 handoff authors
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// RequestLogger returns a middleware that stores a request-scoped sugared
// logger in the gin context, annotated with a per-request id so all log lines
// for one API call can be correlated.
func RequestLogger(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ReqLoggerKey, base.With("requestId", uuid.NewString()))
		c.Next()
	}
}

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the provided fallback sugared logger.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// EscalationFields returns a variadic slice of key/value pairs suitable for
// passing to SugaredLogger.With or Infow/Errorw calls. If conversationID is
// empty it will only include the "escalation" key; otherwise both.
func EscalationFields(escalationID, conversationID string) []interface{} {
	if conversationID == "" {
		return []interface{}{"escalation", escalationID}
	}
	return []interface{}{"escalation", escalationID, "conversation", conversationID}
}
