package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID carries the logical request identity used for hit deduplication.
	HeaderRequestID = "X-Request-ID"
	requestIDKey    = "requestID"
)

// RequestID assigns every request a server generated id and echoes it in the response header.
// A client supplied X-Request-ID is logged but never reused, so only the server decides which
// dispatches are the same request. Clients reconcile hits by sending the echoed id to update-hits.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		if clientID := c.GetHeader(HeaderRequestID); clientID != "" {
			customLog.Debugf("RequestID: Client id '%s' replaced by %s", clientID, requestID)
		}
		c.Set(requestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "" when the middleware did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
