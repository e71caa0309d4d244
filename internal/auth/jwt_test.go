package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		Roles: []string{"catalog:write"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sync-client",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWTValidator_HS256(t *testing.T) {
	v, err := NewJWTValidator(testSecret, "")
	require.NoError(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid token", signHS256(t, testSecret, validClaims()), nil},
		{"empty token", "", ErrMissingToken},
		{"wrong secret", signHS256(t, "other-secret", validClaims()), ErrInvalidToken},
		{"expired", signHS256(t, testSecret, expired), ErrInvalidToken},
		{"missing subject", signHS256(t, testSecret, noSubject), ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Validate(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "sync-client", claims.Subject)
			assert.Equal(t, []string{"catalog:write"}, claims.Roles)
		})
	}
}

func TestJWTValidator_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	v, err := NewJWTValidator("", publicPEM)
	require.NoError(t, err)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	require.NoError(t, err)

	claims, err := v.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "sync-client", claims.Subject)

	// An HS256 token must not pass when RS256 is configured.
	_, err = v.Validate(signHS256(t, testSecret, validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTValidator_Errors(t *testing.T) {
	_, err := NewJWTValidator("", "")
	assert.Error(t, err)

	_, err = NewJWTValidator("", "-----BEGIN PUBLIC KEY-----\nnope\n-----END PUBLIC KEY-----")
	assert.Error(t, err)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"BEARER  abc ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBearerToken(tt.header))
		})
	}
}
