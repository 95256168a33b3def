// Package validate implements full and partial validation of field maps
// against a JSON-Schema-shaped intake definition . The
// validator is pure: no I/O, no clock, no dependency on any store.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"formbridge.dev/formbridge/internal/domain"
)

// Code is one of the fixed validator error codes.
type Code string

const (
	CodeRequired Code = "required"
	CodeInvalidType Code = "invalid_type"
	CodeInvalidFormat Code = "invalid_format"
	CodeInvalidValue Code = "invalid_value"
	CodeTooLong Code = "too_long"
	CodeTooShort Code = "too_short"
	CodeFileRequired Code = "file_required"
	CodeFileTooLarge Code = "file_too_large"
	CodeFileWrongType Code = "file_wrong_type"
	CodeCustom Code = "custom"
)

// FieldError names one violated constraint at a dot-path (or tags[0]-style
// indexed path for array items).
type FieldError struct {
	Field string
	Message string
	Code Code
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
var uriPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Full validates value against schema, failing if any required field is
// absent, in addition to every per-field constraint violation.
func Full(schema *domain.FieldSchema, value map[string]any) []FieldError {
	return walkObject("", schema, value, false)
}

// Partial validates value against schema treating every field as optional;
// constraints are still enforced on fields that are present.
func Partial(schema *domain.FieldSchema, value map[string]any) []FieldError {
	return walkObject("", schema, value, true)
}

func walkObject(prefix string, schema *domain.FieldSchema, value map[string]any, partial bool) []FieldError {
	var errs []FieldError
	if schema == nil {
		return errs
	}

	if !partial {
		for _, req := range schema.Required {
			if _, ok := value[req]; !ok {
				errs = append(errs, FieldError{Field: joinPath(prefix, req), Message: "field is required", Code: CodeRequired})
			}
		}
	}

	for name, fieldSchema := range schema.Properties {
		raw, present := value[name]
		if !present {
			continue
		}
		errs = append(errs, validateField(joinPath(prefix, name), fieldSchema, raw, partial)...)
	}

	return errs
}

func validateField(path string, schema *domain.FieldSchema, raw any, partial bool) []FieldError {
	var errs []FieldError
	if schema == nil {
		return errs
	}

	switch schema.Type {
	case "object":
		obj, ok := raw.(map[string]any)
		if !ok {
			return []FieldError{{Field: path, Message: "expected an object", Code: CodeInvalidType}}
		}
		return walkObject(path, schema, obj, partial)

	case "array":
		arr, ok := raw.([]any)
		if !ok {
			return []FieldError{{Field: path, Message: "expected an array", Code: CodeInvalidType}}
		}
		for i, item := range arr {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			errs = append(errs, validateField(itemPath, schema.Items, item, partial)...)
		}
		return errs

	case "string":
		str, ok := raw.(string)
		if !ok {
			return []FieldError{{Field: path, Message: "expected a string", Code: CodeInvalidType}}
		}
		errs = append(errs, validateString(path, schema, str)...)

	case "number", "integer":
		num, ok := asFloat(raw)
		if !ok {
			return []FieldError{{Field: path, Message: "expected a number", Code: CodeInvalidType}}
		}
		errs = append(errs, validateNumber(path, schema, num)...)

	case "boolean":
		if _, ok := raw.(bool); !ok {
			return []FieldError{{Field: path, Message: "expected a boolean", Code: CodeInvalidType}}
		}

	case "file":
		errs = append(errs, validateFile(path, schema, raw)...)
	}

	return errs
}

func validateString(path string, schema *domain.FieldSchema, str string) []FieldError {
	var errs []FieldError
	if schema.MinLength != nil && len(str) < *schema.MinLength {
		errs = append(errs, FieldError{Field: path, Message: "value is too short", Code: CodeTooShort})
	}
	if schema.MaxLength != nil && len(str) > *schema.MaxLength {
		errs = append(errs, FieldError{Field: path, Message: "value is too long", Code: CodeTooLong})
	}
	if len(schema.Enum) > 0 && !contains(schema.Enum, str) {
		errs = append(errs, FieldError{Field: path, Message: "value not in allowed set", Code: CodeInvalidValue})
	}
	if schema.Pattern != "" {
		re, err := regexp.Compile(schema.Pattern)
		if err == nil && !re.MatchString(str) {
			errs = append(errs, FieldError{Field: path, Message: "value does not match pattern", Code: CodeInvalidFormat})
		}
	}
	switch schema.Format {
	case "email":
		if !emailPattern.MatchString(str) {
			errs = append(errs, FieldError{Field: path, Message: "value is not a valid email", Code: CodeInvalidFormat})
		}
	case "date":
		if !datePattern.MatchString(str) {
			errs = append(errs, FieldError{Field: path, Message: "value is not a valid date", Code: CodeInvalidFormat})
		}
	case "date-time":
		if _, err := time.Parse(time.RFC3339, str); err != nil {
			errs = append(errs, FieldError{Field: path, Message: "value is not a valid date-time", Code: CodeInvalidFormat})
		}
	case "uri":
		if !uriPattern.MatchString(str) {
			errs = append(errs, FieldError{Field: path, Message: "value is not a valid uri", Code: CodeInvalidFormat})
		}
	}
	return errs
}

func validateNumber(path string, schema *domain.FieldSchema, num float64) []FieldError {
	var errs []FieldError
	if schema.Minimum != nil && num < *schema.Minimum {
		errs = append(errs, FieldError{Field: path, Message: "value is below minimum", Code: CodeInvalidValue})
	}
	if schema.Maximum != nil && num > *schema.Maximum {
		errs = append(errs, FieldError{Field: path, Message: "value is above maximum", Code: CodeInvalidValue})
	}
	return errs
}

func validateFile(path string, schema *domain.FieldSchema, raw any) []FieldError {
	meta, ok := raw.(map[string]any)
	if !ok {
		return []FieldError{{Field: path, Message: "expected file metadata", Code: CodeFileRequired}}
	}
	var errs []FieldError
	if schema.MaxSize > 0 {
		if size, ok := asFloat(meta["sizeBytes"]); ok && int64(size) > schema.MaxSize {
			errs = append(errs, FieldError{Field: path, Message: "file exceeds maximum size", Code: CodeFileTooLarge})
		}
	}
	if len(schema.AllowedTypes) > 0 {
		if mime, ok := meta["mimeType"].(string); ok && !contains(schema.AllowedTypes, mime) {
			errs = append(errs, FieldError{Field: path, Message: "file type not allowed", Code: CodeFileWrongType})
		}
	}
	return errs
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
