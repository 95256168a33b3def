package authstub

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestReader_ReadRequest_NoHeaderIsAnonymous(t *testing.T) {
	r := NewReader([]byte("secret"))
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	claims, ok := r.ReadRequest(req)
	assert.False(t, ok)
	assert.Nil(t, claims)
}

func TestReader_ReadRequest_ValidBearerToken(t *testing.T) {
	key := []byte("supersecretkey")
	r := NewReader(key)

	claims := Claims{
		UserID: "user-1",
		Username: "ada",
		Roles: []string{"reviewer"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := signToken(t, key, claims)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	got, ok := r.ReadRequest(req)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "ada", got.Username)
}

func TestReader_ReadRequest_MalformedHeaderIsAnonymous(t *testing.T) {
	r := NewReader([]byte("secret"))
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "NotBearer abc")
	_, ok := r.ReadRequest(req)
	assert.False(t, ok)
}

func TestReader_ReadRequest_ExpiredTokenIsAnonymous(t *testing.T) {
	key := []byte("supersecretkey")
	r := NewReader(key)

	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := signToken(t, key, claims)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, ok := r.ReadRequest(req)
	assert.False(t, ok)
}

func TestReader_NoVerificationKeyAlwaysAnonymous(t *testing.T) {
	r := NewReader(nil)
	key := []byte("some-other-key")
	token := signToken(t, key, Claims{UserID: "user-1"})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, ok := r.ReadRequest(req)
	assert.False(t, ok)
}
