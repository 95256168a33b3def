// Package idgen mints the opaque identifiers and resume tokens used
// throughout FormBridge. Every constructor returns a stable,
// prefixed, opaque string; callers must never parse structure out of them.
package idgen

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	submissionPrefix = "sub_"
	resumeTokenPrefix = "rtok_"
	eventPrefix = "evt_"
	deliveryPrefix = "dlv_"
	uploadPrefix = "upl_"
)

// NewSubmissionID mints an opaque sub_-prefixed submission identifier.
func NewSubmissionID() string {
	return submissionPrefix + uuidV7OrNew()
}

// NewEventID mints an opaque evt_-prefixed event identifier.
func NewEventID() string {
	return eventPrefix + uuidV7OrNew()
}

// NewDeliveryID mints an opaque dlv_-prefixed delivery identifier.
func NewDeliveryID() string {
	return deliveryPrefix + uuidV7OrNew()
}

// NewUploadID mints an opaque upl_-prefixed upload identifier.
func NewUploadID() string {
	return uploadPrefix + uuidV7OrNew()
}

// NewResumeToken mints a cryptographically random rtok_-prefixed bearer
// token with at least 128 bits of entropy.
func NewResumeToken() string {
	buf := make([]byte, 24) // 192 bits
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read failing indicates a broken system entropy source;
		// fall back to a UUID-derived token rather than panic mid-request.
		return resumeTokenPrefix + hex.EncodeToString([]byte(uuid.New().String()))
	}
	return resumeTokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
}

// ConstantTimeEqual reports whether candidate matches current, in time
// independent of where the two strings first differ. An unequal length is
// not itself treated as secret and short-circuits immediately; only the
// byte-by-byte comparison of equal-length strings needs to run in constant
// time.
func ConstantTimeEqual(current, candidate string) bool {
	if len(current) != len(candidate) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(candidate)) == 1
}

func uuidV7OrNew() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
