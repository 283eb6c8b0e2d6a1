// Package auth issues and verifies the HS256 bearer tokens that carry a
// user's identity and role.
package auth

import (
	"errors"
	"fmt"
	"time"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the token payload.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an API bearer token for userID valid for ttl.
func IssueToken(secret, userID string, role models.Role, ttl time.Duration) (string, error) {
	return issue(secret, userID, role, config.APIAudience, ttl)
}

// IssueLinkToken signs a token that only the Telegram /start command accepts.
// It carries no role.
func IssueLinkToken(secret, userID string, ttl time.Duration) (string, error) {
	return issue(secret, userID, "", config.LinkAudience, ttl)
}

// ParseToken verifies an API bearer token: signature, issuer, audience and expiry.
func ParseToken(secret, raw string) (*Claims, error) {
	return parse(secret, raw, config.APIAudience)
}

// ParseLinkToken verifies a Telegram link token.
func ParseLinkToken(secret, raw string) (*Claims, error) {
	return parse(secret, raw, config.LinkAudience)
}

func issue(secret, userID string, role models.Role, audience string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    config.TokenIssuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parse(secret, raw, audience string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(config.TokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
