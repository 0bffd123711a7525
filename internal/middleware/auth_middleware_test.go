package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rewardjar-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

type stubVerifier map[string]*jwt.Claims

func (s stubVerifier) Verify(token string) (*jwt.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := stubVerifier{
		"admin":    {Roles: []string{jwt.RoleAdmin}, RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u1"}},
		"business": {Roles: []string{jwt.RoleBusiness}, BusinessID: "biz-1", RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u2"}},
		"orphan":   {Roles: []string{jwt.RoleBusiness}, RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u3"}},
	}
	m := NewAuthMiddleware(verifier)

	r := gin.New()
	r.GET("/admin", append(m.AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })...)
	r.GET("/cards", append(m.BusinessOrAdmin(), func(c *gin.Context) {
		scope, ok := BusinessScope(c)
		if !ok {
			c.Status(http.StatusForbidden)
			return
		}
		c.String(http.StatusOK, "scope="+scope)
	})...)
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusUnauthorized, do(r, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/admin", "forged").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "business").Code)
	assert.Equal(t, http.StatusOK, do(r, "/admin", "admin").Code)
}

func TestBusinessScope(t *testing.T) {
	r := newRouter()

	w := do(r, "/cards", "business")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scope=biz-1", w.Body.String())

	w = do(r, "/cards", "admin")
	assert.Equal(t, "scope=", w.Body.String())

	assert.Equal(t, http.StatusForbidden, do(r, "/cards", "orphan").Code)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
