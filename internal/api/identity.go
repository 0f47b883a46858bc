package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"devlend/internal/config"
	"devlend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrEmailNotAllow = errors.New("email domain not allowed")
)

// Claims are issued by the identity provider.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity verifies bearer tokens and turns them into actors.
type Identity struct {
	secretKey []byte
	issuer    string
	auth      config.AuthConfig
}

func NewIdentity(cfg config.AuthConfig) *Identity {
	return &Identity{
		secretKey: []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		auth:      cfg,
	}
}

// Verify checks the token and returns the caller and their display name.
func (i *Identity) Verify(tokenString string) (models.Actor, string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Actor{}, "", ErrExpiredToken
		}
		return models.Actor{}, "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Actor{}, "", ErrInvalidToken
	}

	sub := strings.TrimSpace(claims.Subject)
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if sub == "" || email == "" {
		return models.Actor{}, "", ErrInvalidToken
	}
	if !i.auth.EmailAllowed(email) {
		return models.Actor{}, "", ErrEmailNotAllow
	}

	role := models.RoleUser
	if models.Role(claims.Role) == models.RoleAdmin {
		role = models.RoleAdmin
	}

	return models.Actor{UserID: sub, Email: email, Role: role}, strings.TrimSpace(claims.Name), nil
}

// Sign issues a token for actor. Used for local development and tests;
// production tokens come from the identity provider.
func (i *Identity) Sign(actor models.Actor, name string, ttl time.Duration) (string, error) {
	if len(i.secretKey) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		Email: actor.Email,
		Role:  string(actor.Role),
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secretKey)
}
