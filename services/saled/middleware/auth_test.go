package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"crybsale/crypto"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func account(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func serve(t *testing.T, auth *Authenticator, header string, scopes ...string) (*httptest.ResponseRecorder, [20]byte) {
	t.Helper()
	var seen [20]byte
	handler := auth.Middleware(scopes...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := Subject(r.Context())
		require.True(t, ok)
		seen = subject
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/sale/presale", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthenticatorAcceptsSubject(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "cryb"}, nil)
	buyer := account(7)
	token := signToken(t, jwt.MapClaims{
		"sub": crypto.FromArray(buyer).String(),
		"iss": "cryb",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	rec, seen := serve(t, auth, "Bearer "+token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, buyer, seen)
}

func TestAuthenticatorRejections(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "cryb"}, nil)
	subject := crypto.FromArray(account(7)).String()

	rec, _ := serve(t, auth, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := signToken(t, jwt.MapClaims{"sub": subject, "iss": "cryb", "exp": time.Now().Add(-time.Hour).Unix()})
	rec, _ = serve(t, auth, "Bearer "+expired)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongIssuer := signToken(t, jwt.MapClaims{"sub": subject, "iss": "other"})
	rec, _ = serve(t, auth, "Bearer "+wrongIssuer)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	badSubject := signToken(t, jwt.MapClaims{"sub": "alice", "iss": "cryb"})
	rec, _ = serve(t, auth, "Bearer "+badSubject)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorRequiresScope(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret}, nil)
	subject := crypto.FromArray(account(1)).String()

	user := signToken(t, jwt.MapClaims{"sub": subject, "scope": "sale:buy"})
	rec, _ := serve(t, auth, "Bearer "+user, "sale:admin")
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin := signToken(t, jwt.MapClaims{"sub": subject, "scope": []interface{}{"sale:buy", "sale:admin"}})
	rec, _ = serve(t, auth, "Bearer "+admin, "sale:admin")
	require.Equal(t, http.StatusNoContent, rec.Code)
}
