package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerKey = "owner"

// IssueToken signs an HS256 token whose subject is owner. A zero ttl issues a
// token without expiry.
func IssueToken(secret []byte, owner string, ttl time.Duration) (string, error) {
	if owner == "" {
		return "", errors.New("issue token: empty owner")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  owner,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AuthMiddleware verifies the bearer token and stores its subject as the caller.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			abortUnauthorized(c)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.Subject == "" {
			abortUnauthorized(c)
			return
		}

		c.Set(ownerKey, claims.Subject)
		c.Next()
	}
}

func callerFrom(c *gin.Context) string {
	return c.GetString(ownerKey)
}
