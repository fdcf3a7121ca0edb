package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/planbridge/internal/api/handlers"
	"example.com/planbridge/internal/models"
	"example.com/planbridge/internal/store"
)

type authStore struct {
	store.Store
	users     map[string]*models.User
	companies map[string]*models.Company
}

func (s *authStore) UserByLogin(_ context.Context, login string) (*models.User, error) {
	u, ok := s.users[login]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (s *authStore) CompanyByName(_ context.Context, name string) (*models.Company, error) {
	c, ok := s.companies[name]
	if !ok {
		return nil, errors.New("company not found")
	}
	return c, nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *authStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	st := &authStore{
		users: map[string]*models.User{
			"planner": {ID: 1, Name: "Planner", Login: "planner", PasswordHash: string(hash)},
		},
		companies: map[string]*models.Company{
			"Acme": {ID: 1, Name: "Acme", WebtokenKey: "signing-key"},
		},
	}

	router := gin.New()
	router.Use(Authenticate(st, zerolog.Nop()))
	router.GET("/whoami", func(c *gin.Context) {
		user := c.MustGet(handlers.UserContextKey).(*models.User)
		c.String(http.StatusOK, user.Login)
	})
	return router, st
}

func signToken(t *testing.T, key, user, password string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		User:     user,
		Password: password,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestAuthenticateBasic(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.SetBasicAuth("planner", "secret")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "planner", w.Body.String())
}

func TestAuthenticateBasicWrongPassword(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.SetBasicAuth("planner", "wrong")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="planbridge"`, w.Header().Get("WWW-Authenticate"))
}

func TestAuthenticateNoCredentials(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	signed := signToken(t, "signing-key", "planner", "secret", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami?company=Acme", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "planner", w.Body.String())
}

func TestAuthenticateTokenWrongPassword(t *testing.T) {
	router, _ := newAuthRouter(t)

	signed := signToken(t, "signing-key", "planner", "wrong", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami?company=Acme", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// A well-signed token without a password claim must not authenticate:
// the signing key is a shared secret, not a credential on its own.
func TestAuthenticateTokenWithoutPassword(t *testing.T) {
	router, _ := newAuthRouter(t)

	signed := signToken(t, "signing-key", "planner", "", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami?company=Acme", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateTokenExpired(t *testing.T) {
	router, _ := newAuthRouter(t)

	signed := signToken(t, "signing-key", "planner", "secret", time.Now().Add(-time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami?company=Acme", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateTokenWrongKey(t *testing.T) {
	router, _ := newAuthRouter(t)

	signed := signToken(t, "other-key", "planner", "secret", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami?company=Acme", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateTokenUnknownCompany(t *testing.T) {
	router, _ := newAuthRouter(t)

	signed := signToken(t, "signing-key", "planner", "secret", time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami?company=Nowhere", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
