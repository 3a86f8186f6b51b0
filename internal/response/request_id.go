package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextKeyRequestID = "request_id"
	headerRequestID     = "X-Request-ID"
	maxRequestIDLen     = 128
)

// RequestIDMiddleware tags every request with an ID, reusing a well-formed
// inbound X-Request-ID and echoing it in the response header.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// RequestID is empty when the middleware did not run.
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ContextKeyRequestID)
}

// validRequestID accepts short printable ASCII so a caller cannot forge
// extra lines in the request log.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
