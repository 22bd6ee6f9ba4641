package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := NewTokenService("s3cret", "odyssey")
	token, err := svc.Issue(shared.Actor{ID: 42, Name: "Asha", Permissions: []string{shared.PermGRNCreate}}, time.Hour)
	require.NoError(t, err)

	actor, err := svc.Verify(token)
	require.NoError(t, err)
	require.EqualValues(t, 42, actor.ID)
	require.Equal(t, "Asha", actor.Name)
	require.Equal(t, []string{shared.PermGRNCreate}, actor.Permissions)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc := NewTokenService("s3cret", "odyssey")

	other := NewTokenService("different", "odyssey")
	forged, err := other.Issue(shared.Actor{ID: 1}, time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.Issue(shared.Actor{ID: 1}, time.Hour)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "odyssey",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, err := noSubject.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = svc.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareStoresActor(t *testing.T) {
	svc := NewTokenService("s3cret", "")
	token, err := svc.Issue(shared.Actor{ID: 9, Permissions: []string{"*"}}, time.Minute)
	require.NoError(t, err)

	var seen shared.Actor
	handler := Middleware(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 9, seen.ID)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
