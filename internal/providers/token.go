package providers

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "athletics-dashboard"

// ConnectionClaims identify the dashboard to the realtime backend
type ConnectionClaims struct {
	jwt.RegisteredClaims
}

// MintConnectionToken signs a HS256 connection token for subject
func MintConnectionToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("token secret is required")
	}

	claims := &ConnectionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign connection token: %w", err)
	}
	return tokenString, nil
}

// connectionToken prefers a static token and mints one when only a secret is set
func (c *PubSubClient) connectionToken() (string, error) {
	if c.config.Token != "" {
		return c.config.Token, nil
	}
	if c.config.TokenSecret == "" {
		return "", nil
	}
	return MintConnectionToken(c.config.TokenSecret, c.config.ClientName, c.config.TokenTTL, time.Now())
}
