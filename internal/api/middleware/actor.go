package middleware

import (
	"github.com/gin-gonic/gin"

	"formbridge.dev/formbridge/internal/authstub"
	"formbridge.dev/formbridge/internal/domain"
)

// ActorResolver reads whatever bearer token is present and annotates the
// request context with a domain.Actor. It never rejects a request: a
// missing, malformed, or expired token simply resolves to the anonymous
// human actor handlers fall back to via GetActor. Actual authentication
// enforcement is out of core scope — this exists only so handlers have
// a concrete caller identity to attach to mutating operations.
func ActorResolver(reader *authstub.Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := reader.ReadRequest(c.Request); ok {
			actor := domain.Actor{Kind: domain.ActorHuman, ID: claims.UserID, Name: claims.Username}
			c.Request = c.Request.WithContext(SetActorContext(c.Request.Context(), actor))
		}
		c.Next()
	}
}
