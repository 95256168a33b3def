package apperrors

import "time"

// ErrorBody is the nested `error` object shared by both carrier shapes.
type ErrorBody struct {
	Type Type `json:"type"`
	Message string `json:"message,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
	NextActions []NextAction `json:"nextActions,omitempty"`
	Retryable bool `json:"retryable"`
	RetryAfterMs int64 `json:"retryAfterMs,omitempty"`
}

// Envelope is the HTTP/API boundary carrier shape.
type Envelope struct {
	OK bool `json:"ok"`
	SubmissionID string `json:"submissionId,omitempty"`
	State string `json:"state,omitempty"`
	ResumeToken string `json:"resumeToken,omitempty"`
	Error *ErrorBody `json:"error"`
}

// Flat is the tool-protocol boundary carrier shape.
type Flat struct {
	Type Type `json:"type"`
	Message string `json:"message"`
	Fields []FieldError `json:"fields,omitempty"`
	NextActions []NextAction `json:"nextActions,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func body(e *AppError) *ErrorBody {
	return &ErrorBody{
		Type: e.Code,
		Message: e.Message,
		Fields: e.Fields,
		NextActions: e.NextActions,
		Retryable: e.Retryable,
		RetryAfterMs: e.RetryAfterMs,
	}
}

// ToEnvelope renders the error for an HTTP/API response.
func ToEnvelope(e *AppError) *Envelope {
	return &Envelope{
		OK: false,
		SubmissionID: e.SubmissionID,
		State: e.State,
		ResumeToken: e.ResumeToken,
		Error: body(e),
	}
}

// ToFlat renders the error for a tool-protocol response.
func ToFlat(e *AppError) *Flat {
	return &Flat{
		Type: e.Code,
		Message: e.Message,
		Fields: e.Fields,
		NextActions: e.NextActions,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// IsEnvelope reports whether v is an Envelope (as opposed to a success body
// or a Flat). Used by callers that receive an `any` and must discriminate.
func IsEnvelope(v any) (*Envelope, bool) {
	env, ok := v.(*Envelope)
	return env, ok
}

// IsFlat reports whether v is a Flat error shape.
func IsFlat(v any) (*Flat, bool) {
	f, ok := v.(*Flat)
	return f, ok
}
