package validate

import "formbridge.dev/formbridge/internal/pkg/apperrors"

// ToAppErrorFields renders validator errors into the shared FieldError shape
// carried by both the envelope and flat error carriers.
func ToAppErrorFields(errs []FieldError) []apperrors.FieldError {
	out := make([]apperrors.FieldError, len(errs))
	for i, e := range errs {
		out[i] = apperrors.FieldError{Field: e.Field, Message: e.Message, Type: string(e.Code)}
	}
	return out
}
