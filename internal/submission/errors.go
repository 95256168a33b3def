package submission

import "errors"

// ErrNotFound is returned by Store lookups; the manager translates it into
// the not_found AppError (cross-tenant access surfaces the same way, by
// design, to avoid leaking existence).
var ErrNotFound = errors.New("submission not found")
