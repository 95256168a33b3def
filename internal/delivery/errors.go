package delivery

import "errors"

// ErrNotFound is returned by Queue lookups for an unknown delivery ID.
var ErrNotFound = errors.New("delivery record not found")
