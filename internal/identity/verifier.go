// Package identity verifies bearer tokens minted by the external identity
// provider and yields the caller's email.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Verifier interface {
	Verify(ctx context.Context, bearer string) (string, error)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) (Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}

	return &jwtVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}, nil
}

func (v *jwtVerifier) Verify(_ context.Context, bearer string) (string, error) {
	tokenString := strings.TrimSpace(bearer)
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return "", ErrInvalidToken
	}

	return strings.ToLower(claims.Email), nil
}

// IssueToken signs a token the verifier accepts. Used by tests and local tooling.
func IssueToken(secret, issuer, email string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
