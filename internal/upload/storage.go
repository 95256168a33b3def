// Package upload implements the upload negotiator: requesting
// and confirming file uploads against a pluggable storage backend.
package upload

import (
	"context"
	"time"
)

// Constraints narrows what a generated upload URL will accept.
type Constraints struct {
	MaxSize int64
	AllowedTypes []string
	MaxCount int
}

// GenerateUploadURLParams is the request shape for Backend.GenerateUploadURL.
type GenerateUploadURLParams struct {
	IntakeID string
	SubmissionID string
	FieldPath string
	Filename string
	MimeType string
	Constraints Constraints
}

// GeneratedUpload is what a storage backend hands back for the caller to
// perform the actual upload against (e.g. a presigned PUT URL).
type GeneratedUpload struct {
	UploadID string
	Method string
	URL string
	ExpiresAt time.Time
}

// VerifyStatus is the outcome of Backend.VerifyUpload.
type VerifyStatus string

const (
	VerifyCompleted VerifyStatus = "completed"
	VerifyPending VerifyStatus = "pending"
	VerifyFailed VerifyStatus = "failed"
)

// VerifyResult reports whether a previously negotiated upload has landed.
type VerifyResult struct {
	Status VerifyStatus
	Error string
}

// Backend is the storage collaborator interface: implementers write
// local disk, S3, GCS, etc. This package ships a filesystem-backed
// reference implementation; it is explicitly a reference, not a
// production object-storage integration.
type Backend interface {
	GenerateUploadURL(ctx context.Context, params GenerateUploadURLParams) (*GeneratedUpload, error)
	VerifyUpload(ctx context.Context, uploadID string) (*VerifyResult, error)
	GenerateDownloadURL(ctx context.Context, uploadID string) (string, error)
}
