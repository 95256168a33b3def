// Package middleware provides HTTP middleware for FormBridge.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"formbridge.dev/formbridge/internal/domain"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID contextKey = "request_id"
	ctxKeyActor contextKey = "actor"
)

// RequestID injects a unique request ID into the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), ctxKeyRequestID, rid),
		)
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// SetActorContext stores the caller's resolved Actor in context.
func SetActorContext(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// GetActor extracts the caller's Actor from context, falling back to an
// anonymous human actor when none was resolved upstream (no bearer token,
// or authstub found nothing to parse).
func GetActor(ctx context.Context) domain.Actor {
	if v, ok := ctx.Value(ctxKeyActor).(domain.Actor); ok {
		return v
	}
	return domain.Actor{Kind: domain.ActorHuman, ID: "anonymous"}
}
