// Package api implements the Gin-based HTTP binding of the submission
// lifecycle core .
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"formbridge.dev/formbridge/internal/api/middleware"
	"formbridge.dev/formbridge/internal/approval"
	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/eventstore"
	"formbridge.dev/formbridge/internal/pkg/apperrors"
	"formbridge.dev/formbridge/internal/submission"
	"formbridge.dev/formbridge/internal/upload"
)

// Handler wires the HTTP surface to the submission manager and its
// collaborators. Every method renders failures via c.Error(err), leaving
// rendering to middleware.ErrorHandler, and renders success directly.
type Handler struct {
	submissions *submission.Manager
	approvals *approval.Manager
	uploads *upload.Negotiator
	events eventstore.Store
}

// NewHandler builds a Handler. uploads may be nil when no storage backend
// is configured, in which case upload ops always return invalid.
func NewHandler(submissions *submission.Manager, approvals *approval.Manager, uploads *upload.Negotiator, events eventstore.Store) *Handler {
	return &Handler{submissions: submissions, approvals: approvals, uploads: uploads, events: events}
}

type createRequest struct {
	InitialFields map[string]any `json:"initialFields"`
	IdempotencyKey string `json:"idempotencyKey"`
	TenantID string `json:"tenantId"`
}

// Create handles POST /intake/{intakeId}/submissions.
func (h *Handler) Create(c *gin.Context) {
	intakeID := c.Param("intakeId")

	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
			return
		}
	}

	actor := middleware.GetActor(c.Request.Context())
	view, err := h.submissions.Create(c.Request.Context(), intakeID, actor, req.InitialFields, req.IdempotencyKey, req.TenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, renderView(view))
}

// Read handles GET /intake/{intakeId}/submissions/{submissionId}.
func (h *Handler) Read(c *gin.Context) {
	submissionID := c.Param("submissionId")
	tenantID := c.Query("tenantId")

	view, err := h.submissions.GetByID(c.Request.Context(), submissionID, tenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if view.IntakeID != c.Param("intakeId") {
		_ = c.Error(apperrors.NotFound("submission not found under this intake"))
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

type setFieldsRequest struct {
	ResumeToken string `json:"resumeToken"`
	Fields map[string]any `json:"fields"`
}

// SetFields handles PATCH /intake/{intakeId}/submissions/{submissionId}.
func (h *Handler) SetFields(c *gin.Context) {
	submissionID := c.Param("submissionId")

	var req setFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
		return
	}

	actor := middleware.GetActor(c.Request.Context())
	view, err := h.submissions.SetFields(c.Request.Context(), submissionID, req.ResumeToken, actor, req.Fields)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

// Validate handles the standalone validate path reachable through the
// tool-surface adapter; exposed here too for parity, mounted under
// /intake/{intakeId}/submissions/{submissionId}/validate.
func (h *Handler) Validate(c *gin.Context) {
	submissionID := c.Param("submissionId")
	resumeToken := c.Query("resumeToken")

	view, fieldErrs, err := h.submissions.Validate(c.Request.Context(), submissionID, resumeToken)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := validationResponse{OK: true, Valid: len(fieldErrs) == 0, submissionResponse: renderView(view)}
	for _, fe := range fieldErrs {
		resp.Errors = append(resp.Errors, fieldErrorDTO{Field: fe.Field, Message: fe.Message, Code: string(fe.Code)})
	}
	c.JSON(http.StatusOK, resp)
}

type tokenRequest struct {
	ResumeToken string `json:"resumeToken"`
}

// Submit handles POST /intake/{intakeId}/submissions/{submissionId}/submit.
func (h *Handler) Submit(c *gin.Context) {
	submissionID := c.Param("submissionId")

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
		return
	}

	actor := middleware.GetActor(c.Request.Context())
	view, err := h.submissions.Submit(c.Request.Context(), submissionID, req.ResumeToken, actor)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.TypeNeedsApproval && view != nil {
			c.JSON(http.StatusAccepted, renderView(view))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

// ResumeByToken handles GET /submissions/resume/{resumeToken}. It bypasses
// authentication entirely — the token is the credential.
func (h *Handler) ResumeByToken(c *gin.Context) {
	token := c.Param("resumeToken")

	view, err := h.submissions.GetByResumeToken(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

// Resumed handles POST /submissions/resume/{resumeToken}/resumed.
func (h *Handler) Resumed(c *gin.Context) {
	token := c.Param("resumeToken")
	actor := middleware.GetActor(c.Request.Context())

	view, err := h.submissions.EmitHandoffResumed(c.Request.Context(), token, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

// Handoff handles POST /submissions/{id}/handoff.
func (h *Handler) Handoff(c *gin.Context) {
	submissionID := c.Param("id")
	actor := middleware.GetActor(c.Request.Context())

	url, view, err := h.submissions.GenerateHandoffURL(c.Request.Context(), submissionID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handoffResponse{OK: true, URL: url, submissionResponse: renderView(view)})
}

type reviewRequest struct {
	ResumeToken string `json:"resumeToken"`
	TenantID string `json:"tenantId"`
	Reason string `json:"reason"`
}

// Approve handles POST /submissions/{id}/approve.
func (h *Handler) Approve(c *gin.Context) {
	var req reviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
			return
		}
	}
	actor := middleware.GetActor(c.Request.Context())
	view, err := h.approvals.Approve(c.Request.Context(), c.Param("id"), req.ResumeToken, req.TenantID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

// Reject handles POST /submissions/{id}/reject.
func (h *Handler) Reject(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
		return
	}
	actor := middleware.GetActor(c.Request.Context())
	view, err := h.approvals.Reject(c.Request.Context(), c.Param("id"), req.ResumeToken, req.TenantID, actor, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

// RequestChanges handles POST /submissions/{id}/request-changes.
func (h *Handler) RequestChanges(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
		return
	}
	actor := middleware.GetActor(c.Request.Context())
	view, err := h.approvals.RequestChanges(c.Request.Context(), c.Param("id"), req.ResumeToken, req.TenantID, actor, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

type requestUploadRequest struct {
	ResumeToken string `json:"resumeToken"`
	Field string `json:"field"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	SizeBytes int64 `json:"sizeBytes"`
}

// RequestUpload handles POST /intake/{id}/submissions/{sid}/uploads.
func (h *Handler) RequestUpload(c *gin.Context) {
	if h.uploads == nil {
		_ = c.Error(apperrors.Invalid("no storage backend configured for uploads", nil))
		return
	}

	var req requestUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
		return
	}

	actor := middleware.GetActor(c.Request.Context())
	result, err := h.uploads.RequestUpload(c.Request.Context(), c.Param("submissionId"), req.ResumeToken, req.Field, req.Filename, req.MimeType, req.SizeBytes, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, uploadRequestResponse{
		OK: true,
		UploadID: result.UploadID,
		Method: result.Method,
		URL: result.URL,
		ExpiresInMs: result.ExpiresInMs,
		Constraints: constraintsDTO{
			MaxSize: result.Constraints.MaxSize,
			AllowedTypes: result.Constraints.AllowedTypes,
			MaxCount: result.Constraints.MaxCount,
		},
	})
}

// ConfirmUpload handles POST /intake/{id}/submissions/{sid}/uploads/{uploadId}/confirm.
func (h *Handler) ConfirmUpload(c *gin.Context) {
	if h.uploads == nil {
		_ = c.Error(apperrors.Invalid("no storage backend configured for uploads", nil))
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest("malformed request body: " + err.Error()))
		return
	}

	actor := middleware.GetActor(c.Request.Context())
	view, err := h.uploads.ConfirmUpload(c.Request.Context(), c.Param("submissionId"), req.ResumeToken, c.Param("uploadId"), actor)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, renderView(view))
}

// Events handles GET /submissions/{id}/events — paginated, filterable.
func (h *Handler) Events(c *gin.Context) {
	submissionID := c.Param("id")

	filter := eventstore.Filter{Limit: -1}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			_ = c.Error(apperrors.InvalidRequest("limit must be an integer"))
			return
		}
		filter.Limit = limit
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			_ = c.Error(apperrors.InvalidRequest("offset must be an integer"))
			return
		}
		filter.Offset = offset
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			_ = c.Error(apperrors.InvalidRequest("since must be RFC3339"))
			return
		}
		filter.Since = &t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			_ = c.Error(apperrors.InvalidRequest("until must be RFC3339"))
			return
		}
		filter.Until = &t
	}
	if actorKind := c.Query("actorKind"); actorKind != "" {
		filter.ActorKind = domain.ActorKind(actorKind)
	}
	for _, t := range c.QueryArray("type") {
		filter.Types = append(filter.Types, domain.EventType(t))
	}

	events, err := h.events.Query(c.Request.Context(), submissionID, filter)
	if err != nil {
		_ = c.Error(apperrors.StorageError(err))
		return
	}
	total, err := h.events.Count(c.Request.Context(), submissionID, filter)
	if err != nil {
		_ = c.Error(apperrors.StorageError(err))
		return
	}

	resp := eventsResponse{OK: true, Total: total}
	for _, e := range events {
		resp.Events = append(resp.Events, renderEvent(eventstore.Redact(e)))
	}
	c.JSON(http.StatusOK, resp)
}
