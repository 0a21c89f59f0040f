package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	CorrelationIDKey    = "correlation_id" // gin context key

	maxCorrelationIDLength = 64
)

// CorrelationID tags each request with an id that follows it into logs, outbox events,
// history documents and webhook outcomes. A caller-supplied id is kept only when it is
// short and made of [A-Za-z0-9._-]; anything else is replaced with a fresh uuid.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDKey, id)
		c.Writer.Header().Set(CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(shared.ContextWithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !correlationIDByte(id[i]) {
			return false
		}
	}
	return true
}

func correlationIDByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	return b == '-' || b == '_' || b == '.'
}

// GetCorrelationID returns "" outside the CorrelationID middleware
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}
