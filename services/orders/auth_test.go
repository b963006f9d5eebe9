package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, subject string, isStaff bool, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, authClaims{
		IsStaff: isStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(secret)
	assert.NoError(t, err)
	return signed
}

func authTestRouter() (*gin.Engine, *AuthContext) {
	gin.SetMode(gin.TestMode)
	var captured AuthContext

	r := gin.New()
	r.GET("/protected", AuthMiddleware(testSecret), func(c *gin.Context) {
		captured = mustAuth(c)
		c.Status(http.StatusOK)
	})
	return r, &captured
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	// Arrange
	r, captured := authTestRouter()
	token := signToken(t, testSecret, "user-1", true, time.Now().Add(time.Hour))

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", captured.UserID)
	assert.True(t, captured.IsStaff)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	// Arrange
	r, _ := authTestRouter()

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	// Arrange
	r, _ := authTestRouter()
	token := signToken(t, []byte("another-secret"), "user-1", false, time.Now().Add(time.Hour))

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	// Arrange
	r, _ := authTestRouter()
	token := signToken(t, testSecret, "user-1", false, time.Now().Add(-time.Minute))

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_NoSubject(t *testing.T) {
	// Arrange
	r, _ := authTestRouter()
	token := signToken(t, testSecret, "", false, time.Now().Add(time.Hour))

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
