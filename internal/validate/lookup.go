package validate

import (
	"strings"

	"formbridge.dev/formbridge/internal/domain"
)

// LookupFieldSchema walks a dot-path into schema.Properties, returning the
// FieldSchema at that path or nil if any segment is absent. Used by the
// upload negotiator to confirm a requested field is declared as type
// "file" before negotiating a storage URL for it.
func LookupFieldSchema(schema *domain.FieldSchema, path string) *domain.FieldSchema {
	cur := schema
	for _, segment := range strings.Split(path, ".") {
		if cur == nil || cur.Properties == nil {
			return nil
		}
		cur = cur.Properties[segment]
	}
	return cur
}
