// Package authstub provides a thin, non-enforcing JWT-claims reader.
//
// Authentication proper sits ahead of the core: nothing
// here rejects a request. Its only job is to give the HTTP binding a
// concrete way to read a caller identity — when a bearer token happens to
// be present and valid — so it can populate domain.Actor{Kind: human} with
// a real subject instead of an opaque placeholder. Resume-token routes
// never call this: the token itself is the credential there.
package authstub

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of claim shape this reader understands: user id,
// username, and roles, without any revocation/issuer enforcement
// machinery — there is no policy here to enforce.
type Claims struct {
	UserID string `json:"user_id"`
	Username string `json:"username"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Reader parses bearer tokens against a single verification key. A nil or
// empty key means every request is read as anonymous.
type Reader struct {
	verificationKey []byte
}

// NewReader constructs a Reader. An empty key is valid: ReadRequest then
// always returns (nil, false), which callers of this stub treat the same as
// "anonymous caller", never as an error to surface to the client.
func NewReader(verificationKey []byte) *Reader {
	return &Reader{verificationKey: verificationKey}
}

// ReadRequest extracts and parses the bearer token from r, if any. It never
// returns an error that should fail the request: an absent, malformed, or
// expired token simply yields (nil, false) — the caller is free to proceed
// as an anonymous caller.
func (r *Reader) ReadRequest(req *http.Request) (*Claims, bool) {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return nil, false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}
	return r.Parse(parts[1])
}

// Parse parses and verifies tokenString, returning its claims on success.
func (r *Reader) Parse(tokenString string) (*Claims, bool) {
	if len(r.verificationKey) == 0 {
		return nil, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return r.verificationKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}
