package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const traceIDKey = "trace_id"

const traceIDHeader = "X-Trace-ID"

// TraceID generalizes middleware.AttachRequestContext to this package's
// narrower need: echo the caller's X-Trace-ID, or mint one, stash it in the
// gin context for handlers and respondError, and write it back on the
// response so a caller with no trace id of its own still gets one to log.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(traceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(traceIDKey, traceID)
		c.Header(traceIDHeader, traceID)
		c.Next()
	}
}
