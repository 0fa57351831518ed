package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blanx-app/backend/internal/database"
	"github.com/blanx-app/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ParseToken validates a JWT and returns the user id it carries. Token
// issuance belongs to the auth collaborator; this backend only
// verifies. Shared by the HTTP middleware and the websocket join flow.
func ParseToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", errors.New("token missing expiration")
	}
	if time.Unix(int64(exp), 0).Before(time.Now()) {
		return "", errors.New("token expired")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("invalid user_id in token")
	}

	return userID, nil
}

// VerifyUserToken parses the token and checks the user row exists.
// Returns the user id. Used as the websocket TokenVerifier.
func VerifyUserToken(secret []byte, tokenString string) (string, error) {
	userID, err := ParseToken(secret, tokenString)
	if err != nil {
		return "", err
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("user not found: %w", err)
	}

	return user.ID, nil
}

// AuthRequired authenticates the request via the Authorization header
// (Bearer token) or a token query parameter, loads the user row and
// sets "user_id" and "user" in the gin context.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		if token := c.Query("token"); token != "" {
			tokenString = token
		}
		if auth := c.GetHeader("Authorization"); auth != "" {
			tokenString = strings.TrimPrefix(auth, "Bearer ")
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			c.Abort()
			return
		}

		userID, err := ParseToken(secret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed", "message": err.Error()})
			c.Abort()
			return
		}

		var user models.User
		if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", &user)
		c.Next()
	}
}
