package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/codeldorado/rebill/internal/types"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware attaches a request id to the context, honouring a
// caller supplied X-Request-ID header and echoing the id back
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST)
	}

	ctx := types.SetRequestID(c.Request.Context(), requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Writer.Header().Set(requestIDHeader, requestID)

	c.Next()
}
