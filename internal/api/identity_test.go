package api

import (
	"testing"
	"time"

	"devlend/internal/config"
	"devlend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentity() *Identity {
	return NewIdentity(config.AuthConfig{
		JWTSecret:           testSecret,
		Issuer:              "https://id.kaist.ac.kr",
		AllowedEmailDomains: []string{"kaist.ac.kr"},
	})
}

func signRaw(t *testing.T, method jwt.SigningMethod, claims Claims, key any) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestIdentityVerify(t *testing.T) {
	id := newTestIdentity()

	t.Run("round trip", func(t *testing.T) {
		tok, err := id.Sign(desk, "Front Desk", time.Hour)
		require.NoError(t, err)

		actor, name, err := id.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, desk, actor)
		assert.Equal(t, "Front Desk", name)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := id.Sign(student, "", -time.Minute)
		require.NoError(t, err)
		_, _, err = id.Verify(tok)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		tok := signRaw(t, jwt.SigningMethodHS512, Claims{
			Email:            student.Email,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "https://id.kaist.ac.kr"},
		}, []byte(testSecret))
		_, _, err := id.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := signRaw(t, jwt.SigningMethodHS256, Claims{
			Email:            student.Email,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "https://id.kaist.ac.kr"},
		}, []byte("other"))
		_, _, err := id.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		tok := signRaw(t, jwt.SigningMethodHS256, Claims{
			Email:            student.Email,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "https://evil.example"},
		}, []byte(testSecret))
		_, _, err := id.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing email", func(t *testing.T) {
		tok := signRaw(t, jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "https://id.kaist.ac.kr"},
		}, []byte(testSecret))
		_, _, err := id.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("domain not allowed", func(t *testing.T) {
		tok, err := id.Sign(models.Actor{UserID: "u-2", Email: "x@gmail.com", Role: models.RoleUser}, "", time.Hour)
		require.NoError(t, err)
		_, _, err = id.Verify(tok)
		assert.ErrorIs(t, err, ErrEmailNotAllow)
	})

	t.Run("unknown role is user", func(t *testing.T) {
		tok := signRaw(t, jwt.SigningMethodHS256, Claims{
			Email: " Kim@KAIST.ac.kr ",
			Role:  "superuser",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u-1",
				Issuer:    "https://id.kaist.ac.kr",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}, []byte(testSecret))
		actor, _, err := id.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, actor.Role)
		assert.Equal(t, "kim@kaist.ac.kr", actor.Email)
	})
}

func TestIdentitySignWithoutSecret(t *testing.T) {
	_, err := NewIdentity(config.AuthConfig{}).Sign(student, "", time.Hour)
	assert.Error(t, err)
}
