package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext echoes trace and request ids on every response so
// clients can quote them in bug reports. The trace id comes from the
// active otel span when one exists, otherwise from the inbound header,
// otherwise it is minted here.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		traceID := ""
		if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
			traceID = spanCtx.TraceID().String()
		}
		if traceID == "" {
			traceID = strings.TrimSpace(c.GetHeader(headerTraceID))
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}
