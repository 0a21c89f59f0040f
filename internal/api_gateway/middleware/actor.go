package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
)

const (
	// ActorIDHeader carries the authenticated user id set by the auth collaborator
	ActorIDHeader = "X-Actor-ID"

	// ActorRoleHeader carries the authenticated user's role
	ActorRoleHeader = "X-Actor-Role"

	// ActorKey is the key used to store the actor in the gin context
	ActorKey = "actor"
)

// Actor reads the trusted identity headers. Requests without them pass through
// anonymous; a malformed actor id is rejected.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorIDHeader)
		if raw == "" {
			c.Next()
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			abortUnauthorized(c, "Invalid "+ActorIDHeader+" header")
			return
		}

		c.Set(ActorKey, shared.Actor{ID: id, Role: shared.ParseRole(c.GetHeader(ActorRoleHeader))})
		c.Next()
	}
}

// RequireActor rejects requests that carry no actor identity
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetActor(c); !ok {
			abortUnauthorized(c, "Missing "+ActorIDHeader+" header")
			return
		}
		c.Next()
	}
}

// GetActor retrieves the actor from the gin context if present
func GetActor(c *gin.Context) (shared.Actor, bool) {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(shared.Actor); ok {
			return actor, true
		}
	}
	return shared.Actor{}, false
}

func abortUnauthorized(c *gin.Context, message string) {
	abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// abortWithError writes the error envelope from inside middleware, where the
// handler package's helpers are out of reach.
func abortWithError(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
