package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueToken(t *testing.T) {
	token, err := IssueToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "alice", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, err = IssueToken(testSecret, "", time.Hour)
	assert.Error(t, err)
}

func TestAuthMiddlewareSetsCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", AuthMiddleware(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, callerFrom(c))
	})

	token, err := IssueToken(testSecret, "carol", 0)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", w.Body.String())
}

func TestAuthMiddlewareRejectsOtherAlgorithms(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", AuthMiddleware(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, callerFrom(c))
	})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "mallory"}).SignedString(testSecret)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
