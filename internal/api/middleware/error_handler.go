package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/pkg/apperrors"
	"formbridge.dev/formbridge/internal/pkg/logger"
)

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and renders them as the envelope
// carrier shape. Handlers should call c.Error(err) and return rather
// than rendering their own failure JSON.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		appErr, ok := apperrors.As(err)
		if !ok {
			appErr = apperrors.Internal(err)
		}

		logger.Warn("request error",
			zap.String("code", string(appErr.Code)),
			zap.String("message", appErr.Message),
			zap.Int("status", appErr.HTTPStatus()),
			zap.Error(appErr.Err),
		)
		c.JSON(appErr.HTTPStatus(), apperrors.ToEnvelope(appErr))
	}
}

// NotFoundHandler renders a bare 404 for unmatched routes — there is no
// AppError to attach context.Errors for a route that never reached a
// handler.
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": gin.H{"type": "not_found", "message": "route not found"}})
	}
}
