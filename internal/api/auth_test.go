package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"installments/internal/api"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(api.ActorFromContext(r.Context())))
	})
}

func TestAuthBearerToken(t *testing.T) {
	h := api.AuthMiddleware(testSecret, "prod")(echoActor())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "mgr-42", testSecret))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mgr-42", rec.Body.String())
}

func TestAuthRejectsBadSignature(t *testing.T) {
	h := api.AuthMiddleware(testSecret, "prod")(echoActor())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "mgr-42", "other-secret"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthDevHeaderFallback(t *testing.T) {
	h := api.AuthMiddleware("", "dev")(echoActor())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Manager-ID", "mgr-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mgr-7", rec.Body.String())
}

func TestAuthDevHeaderIgnoredInProd(t *testing.T) {
	h := api.AuthMiddleware(testSecret, "prod")(echoActor())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Manager-ID", "mgr-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsTokenWithoutSubject(t *testing.T) {
	h := api.AuthMiddleware(testSecret, "prod")(echoActor())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{})
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
