package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"formbridge.dev/formbridge/internal/api/middleware"
	"formbridge.dev/formbridge/internal/authstub"
)

// NewRouter builds the gin.Engine binding the HTTP surface to h, with a
// standard middleware chain: recovery, request-id, centralized error
// rendering, CORS, then actor resolution (never rejecting).
func NewRouter(h *Handler, authReader *authstub.Reader) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(corsConfig()))
	router.Use(middleware.ActorResolver(authReader))
	router.NoRoute(middleware.NotFoundHandler())

	intakeGroup := router.Group("/intake/:intakeId/submissions")
	{
		intakeGroup.POST("", h.Create)
		intakeGroup.GET("/:submissionId", h.Read)
		intakeGroup.PATCH("/:submissionId", h.SetFields)
		intakeGroup.POST("/:submissionId/submit", h.Submit)
		intakeGroup.POST("/:submissionId/validate", h.Validate)
		intakeGroup.POST("/:submissionId/uploads", h.RequestUpload)
		intakeGroup.POST("/:submissionId/uploads/:uploadId/confirm", h.ConfirmUpload)
	}

	submissionsGroup := router.Group("/submissions")
	{
		submissionsGroup.GET("/resume/:resumeToken", h.ResumeByToken)
		submissionsGroup.POST("/resume/:resumeToken/resumed", h.Resumed)
		submissionsGroup.POST("/:id/handoff", h.Handoff)
		submissionsGroup.POST("/:id/approve", h.Approve)
		submissionsGroup.POST("/:id/reject", h.Reject)
		submissionsGroup.POST("/:id/request-changes", h.RequestChanges)
		submissionsGroup.GET("/:id/events", h.Events)
	}

	return router
}

// corsConfig is a permissive-but-explicit CORS builder.
// FormBridge has no operator-facing CORS option in this expansion: an
// intake-submission API is typically embedded behind a reverse proxy or
// called agent-to-agent, not browser-to-browser across origins, so it is
// fixed rather than config-driven.
func corsConfig() cors.Config {
	return cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge: 12 * time.Hour,
	}
}
