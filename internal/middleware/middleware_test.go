package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/auth"
)

const testUser = "6f1c2a4e-8a3b-4c5d-9e7f-0123456789ab"

func signToken(t *testing.T, secret, userID string) string {
	t.Helper()
	claims := auth.Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newRouter(opts IdentityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/me", Identity(opts), func(c *gin.Context) {
		userID, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"userId": userID, "requestId": GetRequestID(c)})
	})
	return router
}

func TestIdentityWithBearerToken(t *testing.T) {
	verifier := auth.NewVerifier("secret", "")
	token := signToken(t, "secret", testUser)

	router := newRouter(IdentityOptions{Verifier: verifier})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), testUser)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIdentityRejectsMissingOrBadCredentials(t *testing.T) {
	router := newRouter(IdentityOptions{Verifier: auth.NewVerifier("secret", "")})

	for _, header := range []string{"", "Bearer nope", "Token abc"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		req.Header.Set("X-User-ID", testUser)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestIdentityTrustedHeader(t *testing.T) {
	router := newRouter(IdentityOptions{TrustUserHeader: true})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "6F1C2A4E-8A3B-4C5D-9E7F-0123456789AB")
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), testUser)
	require.Equal(t, "req-7", rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "12")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityQueryToken(t *testing.T) {
	verifier := auth.NewVerifier("secret", "")
	token := signToken(t, "secret", testUser)

	rec := httptest.NewRecorder()
	newRouter(IdentityOptions{Verifier: verifier}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(IdentityOptions{Verifier: verifier, AllowQueryToken: true}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
