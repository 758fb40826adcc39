package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

type stubAuthenticator struct {
	identity model.PublicUser
	err      error
	gotToken string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (model.PublicUser, error) {
	s.gotToken = token
	if s.err != nil {
		return model.PublicUser{}, s.err
	}
	return s.identity, nil
}

func TestRequireAuthMissingHeader(t *testing.T) {
	mw := NewAuthMiddleware(&stubAuthenticator{})

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a bearer token")
	}))

	req := httptest.NewRequest("GET", "/api/v1/auth/profile", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectedToken(t *testing.T) {
	mw := NewAuthMiddleware(&stubAuthenticator{err: model.ErrUnauthorized})

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for a rejected token")
	}))

	req := httptest.NewRequest("GET", "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	stub := &stubAuthenticator{identity: model.PublicUser{ID: "u1", Email: "alice@example.com"}}
	mw := NewAuthMiddleware(stub)

	var seen model.PublicUser
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		seen = identity
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "good-token", stub.gotToken)
	require.Equal(t, "u1", seen.ID)
	require.Equal(t, "alice@example.com", seen.Email)
}
