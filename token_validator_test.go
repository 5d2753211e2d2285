package authxero_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authxero "github.com/PhillipGimmi/go-authxero"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key-1"

func newJWKSServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": testKID,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			},
		},
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/jwks.json", r.URL.Path)
		json.NewEncoder(w).Encode(jwks)
	}))
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestRemoteTokenValidatorAcceptsSignedToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, key)
	defer server.Close()

	validator, err := authxero.NewRemoteTokenValidator(authxero.SimpleConfig{BaseURL: server.URL})
	require.NoError(t, err)
	defer validator.Close()

	raw := signTestToken(t, key, authxero.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UID:           "user-1",
		Role:          "member",
		EmailVerified: true,
	})

	claims, err := validator.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UID)
	assert.Equal(t, "member", claims.Role)
	assert.True(t, claims.EmailVerified)
}

func TestRemoteTokenValidatorRejectsExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, key)
	defer server.Close()

	validator, err := authxero.NewRemoteTokenValidator(authxero.SimpleConfig{BaseURL: server.URL})
	require.NoError(t, err)
	defer validator.Close()

	raw := signTestToken(t, key, authxero.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err = validator.Validate(raw)
	require.Error(t, err)
	assert.Equal(t, authxero.TextCodeSessionExpired, authxero.TextCodeOf(err))
}

func TestRemoteTokenValidatorRejectsGarbage(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, key)
	defer server.Close()

	validator, err := authxero.NewRemoteTokenValidator(authxero.SimpleConfig{BaseURL: server.URL})
	require.NoError(t, err)
	defer validator.Close()

	_, err = validator.Validate("not-a-token")
	require.Error(t, err)
	assert.Equal(t, authxero.TextCodeTokenMalformed, authxero.TextCodeOf(err))
}

func TestRemoteTokenValidatorEnforcesIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, key)
	defer server.Close()

	validator, err := authxero.NewRemoteTokenValidator(
		authxero.SimpleConfig{BaseURL: server.URL},
		authxero.WithValidatorIssuer("https://issuer.example.com"),
	)
	require.NoError(t, err)
	defer validator.Close()

	raw := signTestToken(t, key, authxero.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://someone-else.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err = validator.Validate(raw)
	assert.Error(t, err)
}

func TestRemoteTokenValidatorUnreachableJWKS(t *testing.T) {
	_, err := authxero.NewRemoteTokenValidator(authxero.SimpleConfig{BaseURL: "http://127.0.0.1:1"})
	assert.Error(t, err)
}
