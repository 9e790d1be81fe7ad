package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comunidadednb/billing-service/internal/config"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func setupRouter(t *testing.T) (*gin.Engine, *Middleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(&config.Config{AuthJWTSecret: testSecret})

	r := gin.New()
	r.GET("/protected", m.Handler(), func(c *gin.Context) {
		identity := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID})
	})
	r.POST("/admin", m.Handler(), m.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, m
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_ValidToken(t *testing.T) {
	r, _ := setupRouter(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, http.MethodGet, "/protected", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestHandler_MissingToken(t *testing.T) {
	r, _ := setupRouter(t)
	w := doRequest(r, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_WrongSecret(t *testing.T) {
	r, _ := setupRouter(t)
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, http.MethodGet, "/protected", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_ExpiredToken(t *testing.T) {
	r, _ := setupRouter(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(-time.Hour).Unix(),
	})

	w := doRequest(r, http.MethodGet, "/protected", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_UserTokenRejected(t *testing.T) {
	r, _ := setupRouter(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, http.MethodPost, "/admin", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin_AdminAndServiceTokensPass(t *testing.T) {
	r, _ := setupRouter(t)

	admin := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"role":  AdminRole,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/admin", admin).Code)

	// Service tokens bypass the per-user role check and need no subject.
	service := signToken(t, testSecret, jwt.MapClaims{
		"role": ServiceRole,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/admin", service).Code)
}
