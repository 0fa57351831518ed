package middleware

import (
	"os"
	"testing"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestParseTokenValid(t *testing.T) {
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	userID, err := ParseToken(testSecret, tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestParseTokenExpired(t *testing.T) {
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := ParseToken(testSecret, tokenString)
	assert.Error(t, err)
}

func TestParseTokenWrongSecret(t *testing.T) {
	tokenString := signToken(t, []byte("other-secret"), jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, err := ParseToken(testSecret, tokenString)
	assert.Error(t, err)
}

func TestParseTokenMissingUserID(t *testing.T) {
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := ParseToken(testSecret, tokenString)
	assert.Error(t, err)
}

func TestParseTokenMissingExpiration(t *testing.T) {
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-123",
	})

	_, err := ParseToken(testSecret, tokenString)
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken(testSecret, "not.a.token")
	assert.Error(t, err)
}
