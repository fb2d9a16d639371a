package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateAcceptsSignedToken(t *testing.T) {
	v := NewTokenValidator(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": float64(42)})

	userID, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, 42, userID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	v := NewTokenValidator(testSecret)
	token := signToken(t, "other-secret", jwt.MapClaims{"user_id": float64(42)})

	_, err := v.Validate(context.Background(), token)
	require.Error(t, err)
}

func TestValidateRejectsMissingUserClaim(t *testing.T) {
	v := NewTokenValidator(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "someone"})

	_, err := v.Validate(context.Background(), token)
	require.Error(t, err)
}

func setupAuthRouter(v *TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(v), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("userID")})
	})
	return r
}

func TestAuthMiddlewareSetsUserID(t *testing.T) {
	r := setupAuthRouter(NewTokenValidator(testSecret))
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": float64(7)})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":7`)
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r := setupAuthRouter(NewTokenValidator(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	r := setupAuthRouter(NewTokenValidator(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	r := setupAuthRouter(NewTokenValidator(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
