// ABOUTME: Handshake token verification for the signaling endpoint
// ABOUTME: HS256 JWTs carrying the participant identity and role

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims is what a verified handshake token asserts about the connecting
// participant. Role is empty for tokens minted before roles were added;
// the hub treats an empty role as unconstrained.
type Claims struct {
	Subject string
	Role    string
}

// TokenVerifier validates a handshake credential.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// tokenClaims is the JWT payload: registered claims plus the participant
// role under a private "role" claim.
type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token and returns the identity ("sub") and role
// ("role") claims it was minted with.
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return &Claims{
		Subject: claims.Subject,
		Role:    claims.Role,
	}, nil
}

// Generate mints a token asserting the given identity and role, expiring
// after expiresIn.
func (v *JWTVerifier) Generate(identity, role string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// NoopVerifier accepts any credential, including none, and asserts
// nothing about the participant. It is the verifier for deployments that
// leave auth.jwt_secret unset and run the signaling endpoint open.
type NoopVerifier struct{}

// Verify always succeeds with empty claims.
func (NoopVerifier) Verify(string) (*Claims, error) { return &Claims{}, nil }
