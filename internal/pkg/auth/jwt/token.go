package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// UserIdentityExpiration defines the lifetime of tokens minted by GenerateToken.
	UserIdentityExpiration = 7 * 24 * time.Hour

	// TokenIssuer identifies tokens minted by GenerateToken.
	TokenIssuer = "chat_server"
)

// DecodeClaims extracts the claims from a token without verifying its signature.
// The client holds no verification key; it trusts the claims for local state and
// lets the chat server reject the token on the next authenticated call.
func DecodeClaims(tokenString string) (*Payload, error) {
	claims := &Payload{}

	parser := new(jwt.Parser)
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}

	if claims.ID == 0 {
		return nil, fmt.Errorf("decode token claims: missing user id")
	}

	return claims, nil
}

// GenerateToken signs payload with HS256. It is used by development fixtures and
// tests that stand in for the chat server.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.IssuedAt = now.Unix()
	payload.ExpiresAt = now.Add(duration).Unix()
	payload.Issuer = TokenIssuer

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}
